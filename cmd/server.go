package cmd

import (
	"ChordScroll/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 ChordScroll 服务器",
	Long:  `启动 HTTP 服务器，提供歌谱 API、播放会话 WebSocket 和 Web 界面`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.ServerAddr = addr
		}
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			cfg.TranscriptFile = file
		}
		return server.Start(cfg)
	},
}

func init() {
	serverCmd.Flags().String("addr", "", "listen address (overrides SERVER_ADDR)")
	serverCmd.Flags().StringP("file", "f", "", "transcript file (overrides TRANSCRIPT_FILE)")
	rootCmd.AddCommand(serverCmd)
}
