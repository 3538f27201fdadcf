package tui

import (
	"ChordScroll/model"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	chordStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E8A33D"))
	lyricStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9A9A9A"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

// lineStyle 根据行类型与是否高亮选择样式
func lineStyle(kind model.LineKind, active bool) lipgloss.Style {
	if active {
		return activeStyle
	}
	switch kind {
	case model.LineKindTitle:
		return titleStyle
	case model.LineKindChord:
		return chordStyle
	default:
		return lyricStyle
	}
}
