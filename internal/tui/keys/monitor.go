package keys

import "github.com/charmbracelet/bubbles/key"

// MonitorKeys holds the key bindings for the camera monitor.
type MonitorKeys struct {
	Quit       key.Binding
	Help       key.Binding
	Escape     key.Binding
	InsertMode key.Binding
	Enter      key.Binding
	Expose     key.Binding
	Cancel     key.Binding
	Refresh    key.Binding
	Clear      key.Binding
	TempUp     key.Binding
	TempDown   key.Binding
	Up         key.Binding
	Down       key.Binding
}

func NewMonitorKeys() MonitorKeys {
	return MonitorKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "normal mode"),
		),
		InsertMode: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "edit exposure time"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply"),
		),
		Expose: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "start exposure"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "cancel exposure"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan devices"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear log"),
		),
		TempUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "raise setpoint"),
		),
		TempDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "lower setpoint"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
	}
}

func (k MonitorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Expose, k.Cancel, k.InsertMode, k.Quit}
}

func (k MonitorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Expose, k.Cancel, k.InsertMode, k.Enter},
		{k.TempUp, k.TempDown, k.Refresh, k.Clear},
		{k.Up, k.Down, k.Escape},
		{k.Help, k.Quit},
	}
}
