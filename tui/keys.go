package tui

import "github.com/charmbracelet/bubbles/key"

const tempoStep = 5.0

type keyMap struct {
	Toggle     key.Binding
	Reset      key.Binding
	TempoUp    key.Binding
	TempoDown  key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Toggle:     key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space/p", "play/pause")),
		Reset:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		TempoUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "tempo +5")),
		TempoDown:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "tempo -5")),
		ScrollUp:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "scroll faster")),
		ScrollDown: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "scroll slower")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Reset, k.TempoUp, k.TempoDown, k.ScrollUp, k.ScrollDown, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
