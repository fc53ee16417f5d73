package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openastro/go-fli/internal/tui/styles"
)

// EventMsg is one timestamped line in the monitor log.
type EventMsg struct {
	Timestamp time.Time
	Level     styles.StatusType
	Text      string
}

// EventLog is a scrolling viewport of monitor events, newest at the
// bottom.
type EventLog struct {
	viewport viewport.Model
	events   []EventMsg
	lines    []string
}

func NewEventLog(width, height int) *EventLog {
	vp := viewport.New(width, height)
	return &EventLog{
		viewport: vp,
		events:   make([]EventMsg, 0),
		lines:    make([]string, 0),
	}
}

func (l *EventLog) SetSize(width, height int) {
	l.viewport.Width = width
	l.viewport.Height = height
}

func (l *EventLog) Width() int {
	return l.viewport.Width
}

func (l *EventLog) Add(msg EventMsg) {
	l.events = append(l.events, msg)
	l.lines = append(l.lines, formatEvent(msg))

	l.viewport.SetContent(strings.Join(l.lines, "\n"))
	l.viewport.GotoBottom()
}

func (l *EventLog) Clear() {
	l.events = make([]EventMsg, 0)
	l.lines = make([]string, 0)
	l.viewport.SetContent("")
}

func formatEvent(msg EventMsg) string {
	timestamp := lipgloss.NewStyle().
		Foreground(styles.Overlay0).
		Render(msg.Timestamp.Format("15:04:05.000"))

	var tag string
	switch msg.Level {
	case styles.StatusError:
		tag = styles.GetStatusStyle(styles.StatusDisconnected).Render("✗")
	case styles.StatusConnecting:
		tag = styles.GetStatusStyle(styles.StatusConnecting).Render("•")
	default:
		tag = styles.GetStatusStyle(styles.StatusConnected).Render("•")
	}

	return fmt.Sprintf("%s %s %s", timestamp, tag, msg.Text)
}

func (l *EventLog) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Only window resizes reach the viewport so it never swallows the
	// monitor's key bindings.
	switch msg.(type) {
	case tea.WindowSizeMsg:
		return l.viewport.Update(msg)
	default:
		return l.viewport, nil
	}
}

func (l *EventLog) View() string {
	return l.viewport.View()
}
