package cmd

import (
	"fmt"

	"ChordScroll/core/lyrics"

	"github.com/spf13/cobra"
)

var lintCmd = &cobra.Command{
	Use:   "lint <file>",
	Short: "校验歌谱文件",
	Long:  `解析歌谱文件并输出标题、行数和歌词数；格式错误时返回非零退出码`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := lyrics.LoadFile(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "title:  %s\n", t.Title())
		fmt.Fprintf(out, "lines:  %d\n", t.Len())
		fmt.Fprintf(out, "lyrics: %d\n", t.LyricCount())
		if t.LyricCount() == 0 {
			fmt.Fprintln(out, "warning: no lyric lines, playback will not advance")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
}
