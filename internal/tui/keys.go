package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start     key.Binding
	Pause     key.Binding
	Reset     key.Binding
	Skip      key.Binding
	Next      key.Binding
	Done      key.Binding
	New       key.Binding
	Edit      key.Binding
	Delete    key.Binding
	Repeat    key.Binding
	More      key.Binding
	Less      key.Binding
	MoveUp    key.Binding
	MoveDown  key.Binding
	ToggleAll key.Binding
	Export    key.Binding
	Tab1      key.Binding
	Tab2      key.Binding
	Tab3      key.Binding
	Tab4      key.Binding
	Tab5      key.Binding
	Tab       key.Binding
	Help      key.Binding
	Enter     key.Binding
	Back      key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Start: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start"),
	),
	Pause: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "pause/resume"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Skip: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "skip break"),
	),
	Next: key.NewBinding(
		key.WithKeys("N"),
		key.WithHelp("N", "next phase"),
	),
	Done: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "mark done"),
	),
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Repeat: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "repeat"),
	),
	More: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "more pomodoros"),
	),
	Less: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "fewer pomodoros"),
	),
	MoveUp: key.NewBinding(
		key.WithKeys("K", "shift+up"),
		key.WithHelp("K", "move up"),
	),
	MoveDown: key.NewBinding(
		key.WithKeys("J", "shift+down"),
		key.WithHelp("J", "move down"),
	),
	ToggleAll: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "today/all"),
	),
	Export: key.NewBinding(
		key.WithKeys("E"),
		key.WithHelp("E", "export"),
	),
	Tab1: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "timer"),
	),
	Tab2: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "tasks"),
	),
	Tab3: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "history"),
	),
	Tab4: key.NewBinding(
		key.WithKeys("4"),
		key.WithHelp("4", "stats"),
	),
	Tab5: key.NewBinding(
		key.WithKeys("5"),
		key.WithHelp("5", "settings"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "left"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "right"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Pause, k.Done, k.New, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Pause, k.Reset, k.Skip, k.Next, k.Done},
		{k.New, k.Edit, k.Delete, k.More, k.Less, k.MoveUp, k.MoveDown},
		{k.Repeat, k.ToggleAll, k.Export},
		{k.Tab1, k.Tab2, k.Tab3, k.Tab4, k.Tab5},
		{k.Up, k.Down, k.Enter, k.Back, k.Quit},
	}
}
