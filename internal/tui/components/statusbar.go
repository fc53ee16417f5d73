package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	fli "github.com/openastro/go-fli"
	"github.com/openastro/go-fli/internal/tui/styles"
)

// CameraStatus is the last polled camera state shown in the bar.
type CameraStatus struct {
	State       fli.ExposureState
	RemainingMS int64
	CCDTemp     float64
	CoolerPower float64
	Setpoint    float64
	HaveReading bool
}

type StatusBar struct {
	deviceName string
	status     string
	err        error
	width      int
	camera     *CameraStatus
}

func NewStatusBar(deviceName string) *StatusBar {
	return &StatusBar{
		deviceName: deviceName,
		status:     "Initializing...",
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetCameraStatus(status *CameraStatus) {
	sb.camera = status
}

func (sb *StatusBar) SetConnecting() {
	sb.status = "Connecting..."
	sb.err = nil
}

func (sb *StatusBar) SetConnected() {
	sb.status = "Connected"
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	if err != nil {
		sb.status = fmt.Sprintf("Connection failed: %v", err)
		sb.err = err
	} else {
		sb.status = "Disconnected"
		sb.err = nil
	}
}

func stateLabel(state fli.ExposureState, remainingMS int64) (string, lipgloss.Color) {
	switch state {
	case fli.StateExposing:
		return fmt.Sprintf("EXPOSING %.1fs", float64(remainingMS)/1000), styles.Yellow
	case fli.StateAwaitingReadout:
		return "DATA READY", styles.Peach
	case fli.StateReadingOut:
		return "READING", styles.Teal
	default:
		return "IDLE", styles.Blue
	}
}

// Render draws the full-width status line: state segment, device name
// and connection dot on the left, thermal readings and clock on the
// right.
func (sb *StatusBar) Render(connected bool, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	// Section 1: exposure state, rendered like a mode indicator
	label, bg := "OFFLINE", styles.Surface2
	if connected && sb.camera != nil {
		label, bg = stateLabel(sb.camera.State, sb.camera.RemainingMS)
	}
	mode := lipgloss.NewStyle().
		Foreground(styles.Base).
		Background(bg).
		Bold(true).
		Padding(0, 1).
		Render(label)

	// Section 2: device name
	device := lipgloss.NewStyle().
		Foreground(styles.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.deviceName)

	// Section 3: single character connection indicator
	var connIndicator string
	var connStyle lipgloss.Style
	switch {
	case sb.err != nil:
		connStyle = lipgloss.NewStyle().Foreground(styles.Red)
		connIndicator = "✗"
	case connected:
		connStyle = lipgloss.NewStyle().Foreground(styles.Green)
		connIndicator = "●"
	case sb.status == "Connecting...":
		connStyle = lipgloss.NewStyle().Foreground(styles.Yellow)
		connIndicator = "○"
	default:
		connStyle = lipgloss.NewStyle().Foreground(styles.Red)
		connIndicator = "○"
	}
	connectionIndicator := connStyle.Render(connIndicator)

	// Section 4: thermal readings
	var thermal string
	if sb.camera != nil && sb.camera.HaveReading {
		thermal = fmt.Sprintf("❄ %.1f°C → %.0f°C  cooler %.0f%%",
			sb.camera.CCDTemp, sb.camera.Setpoint, sb.camera.CoolerPower)
	} else {
		thermal = sb.status
	}
	thermalDetails := lipgloss.NewStyle().
		Foreground(styles.Subtext0).
		Padding(0, 1).
		Render(thermal)

	// Section 5: clock
	clock := lipgloss.NewStyle().
		Foreground(styles.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	divider := lipgloss.NewStyle().
		Foreground(styles.Surface2).
		Padding(0, 1).
		Render("│")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, mode, device, connectionIndicator, divider)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, thermalDetails, divider, clock)

	leftWidth := lipgloss.Width(leftSide)
	rightWidth := lipgloss.Width(rightSide)
	spacerWidth := terminalWidth - leftWidth - rightWidth
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	statusBarStyle := lipgloss.NewStyle().
		Foreground(styles.Text).
		Background(styles.Surface0).
		Width(terminalWidth)

	content := lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide)
	return statusBarStyle.Render(content)
}
