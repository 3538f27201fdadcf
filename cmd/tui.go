package cmd

import (
	"ChordScroll/core/lyrics"
	"ChordScroll/core/playback"
	"ChordScroll/model"
	"ChordScroll/tui"

	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "在终端中滚动歌谱",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			file = cfg.TranscriptFile
		}
		bpm := cfg.DefaultBPM
		if cmd.Flags().Changed("bpm") {
			bpm, _ = cmd.Flags().GetFloat64("bpm")
			if _, err := model.Interval(bpm); err != nil {
				return err
			}
		}

		transcript := lyrics.Default()
		if file != "" {
			t, err := lyrics.LoadFile(file)
			if err != nil {
				return err
			}
			transcript = t
		}

		return tui.Run(transcript,
			playback.WithTempo(bpm),
			playback.WithScrollRate(cfg.ScrollRate))
	},
}

func init() {
	tuiCmd.Flags().StringP("file", "f", "", "transcript file (.yaml, .yml, .txt, .chords, .lrc)")
	tuiCmd.Flags().Float64("bpm", model.DefaultTempo, "tempo in beats per minute")
	rootCmd.AddCommand(tuiCmd)
}
