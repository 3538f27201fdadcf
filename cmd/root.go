package cmd

import (
	"fmt"
	"os"

	"ChordScroll/config"
	"ChordScroll/logger"

	"github.com/spf13/cobra"
)

// cfg 在 PersistentPreRunE 中加载，子命令共享
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "chordscroll",
	Short: "ChordScroll scrolls chord sheets in time with a tempo.",
	Long: `ChordScroll 按节拍逐行高亮歌词，并将当前行滚动到视图中央。
可以作为 Web 服务运行，也可以直接在终端中运行。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		logCfg := cfg.LoggerConfig()
		// 终端界面占用 stdout
		logCfg.NoConsole = cmd.Name() == "tui"
		if err := logger.InitLogger(logCfg); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		for _, w := range cfg.Warnings {
			logger.Warn("config fallback", logger.String("detail", w))
			if logCfg.NoConsole {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
