package tui

import "github.com/charmbracelet/bubbles/key"

type keymap struct {
	up     key.Binding
	down   key.Binding
	add    key.Binding
	toggle key.Binding
	remove key.Binding
	share  key.Binding
	sort   key.Binding
	group  key.Binding
	help   key.Binding
	esc    key.Binding
	quit   key.Binding
}

var defaultKeymap = keymap{
	up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	add: key.NewBinding(
		key.WithKeys("a", "n"),
		key.WithHelp("a", "add timer"),
	),
	toggle: key.NewBinding(
		key.WithKeys(" ", "p"),
		key.WithHelp("space", "pause/resume"),
	),
	remove: key.NewBinding(
		key.WithKeys("x", "delete"),
		key.WithHelp("x", "remove"),
	),
	share: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "share"),
	),
	sort: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "sort"),
	),
	group: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "group by map"),
	),
	help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more"),
	),
	esc: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k keymap) ShortHelp() []key.Binding {
	return []key.Binding{k.add, k.toggle, k.remove, k.share, k.help, k.quit}
}

// FullHelp implements help.KeyMap.
func (k keymap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.add, k.toggle},
		{k.remove, k.share, k.sort, k.group},
		{k.help, k.quit},
	}
}
