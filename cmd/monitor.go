/*
Copyright © 2026 OpenAstro
*/
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	fli "github.com/openastro/go-fli"
	"github.com/openastro/go-fli/internal/tui/components"
	"github.com/openastro/go-fli/internal/tui/keys"
	"github.com/openastro/go-fli/internal/tui/models"
	"github.com/openastro/go-fli/internal/tui/styles"
)

var monitorInterval time.Duration

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <device>",
	Short: "Live camera dashboard",
	Long: `Open a camera and watch it live: exposure state, CCD temperature,
cooler power, and a log of everything the device does.

Keys: 'e' starts an exposure, 'x' cancels it, 'i' edits the exposure
time, '+'/'-' move the cooler setpoint, 'q' quits. Finished exposures
are read out automatically and reported in the log.

Examples:
  flicam monitor FLI-04
  flicam monitor FLI-04 --interval 250ms
  flicam monitor FLI-04 --simulate`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMonitorTUI(args[0], monitorInterval); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "n", time.Second,
		"Status poll interval")
}

// monitorModel represents the Bubble Tea model for the monitor command
type monitorModel struct {
	*models.MonitorModel
	devices   *components.DeviceTable
	log       *components.EventLog
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.MonitorKeys
}

func runMonitorTUI(deviceName string, interval time.Duration) error {
	m := monitorModel{
		MonitorModel: models.NewMonitorModel(deviceName),
		devices:      components.NewDeviceTable(0),
		log:          components.NewEventLog(0, 0),
		statusBar:    components.NewStatusBar(deviceName),
		input:        components.NewInput("500ms, 2s, 1m30s..."),
		help:         help.New(),
		keys:         keys.NewMonitorKeys(),
	}
	m.statusBar.SetConnecting()

	p := tea.NewProgram(&m, tea.WithAltScreen())

	// Open the device and start polling in the background so the UI
	// comes up immediately.
	go func() {
		h, err := fli.Open(deviceName, deviceDomain(fli.DeviceCamera))
		if err != nil {
			p.Send(models.ConnectionStatusMsg{Connected: false, Error: err})
			return
		}
		m.SetHandle(h)
		p.Send(models.ConnectionStatusMsg{Connected: true})

		if devs, err := fli.List(deviceDomain(fli.DeviceNone)); err == nil {
			p.Send(models.DeviceListMsg{Devices: devs})
		}

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-m.GetContext().Done():
					return
				case <-ticker.C:
					status, err := pollCamera(h, m.GetSetpoint())
					if err != nil {
						if m.GetContext().Err() != nil {
							return
						}
						continue
					}
					p.Send(models.CameraStatusMsg{Status: status, Timestamp: time.Now()})
				}
			}
		}()
	}()

	_, err := p.Run()

	m.Cancel()
	return err
}

// pollCamera reads one status snapshot. Polling the exposure status is
// also what moves a finished exposure to the data-ready state.
func pollCamera(h fli.Handle, setpoint float64) (components.CameraStatus, error) {
	var status components.CameraStatus
	status.Setpoint = setpoint

	state, err := fli.GetExposureState(h)
	if err != nil {
		return status, err
	}
	if state == fli.StateExposing {
		remaining, err := fli.GetExposureStatus(h)
		if err != nil {
			return status, err
		}
		status.RemainingMS = remaining
		state, err = fli.GetExposureState(h)
		if err != nil {
			return status, err
		}
	}
	status.State = state

	if temp, err := fli.GetTemperature(h); err == nil {
		status.CCDTemp = temp
		status.HaveReading = true
	}
	if power, err := fli.GetCoolerPower(h); err == nil {
		status.CoolerPower = power
	}

	return status, nil
}

func eventf(level styles.StatusType, format string, args ...interface{}) components.EventMsg {
	return components.EventMsg{
		Timestamp: time.Now(),
		Level:     level,
		Text:      fmt.Sprintf(format, args...),
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return nil
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Device table (paged), input box and status bar have fixed
		// heights; the log gets the rest.
		tableHeight := 9
		inputHeight := 3
		statusBarHeight := 1
		helpHeight := 1
		logHeight := msg.Height - tableHeight - inputHeight - statusBarHeight - helpHeight - 1
		if logHeight < 3 {
			logHeight = 3
		}

		m.devices.SetWidth(msg.Width)
		m.log.SetSize(msg.Width-4, logHeight)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.SetReady(true)

	case models.ConnectionStatusMsg:
		m.SetConnected(msg.Connected)
		if msg.Error != nil {
			m.SetError(msg.Error)
			m.statusBar.SetDisconnected(msg.Error)
			m.log.Add(eventf(styles.StatusError, "open %s: %v", m.GetDeviceName(), msg.Error))
		} else {
			m.statusBar.SetConnected()
			m.log.Add(eventf(styles.StatusConnected, "connected to %s", m.GetDeviceName()))
		}

	case models.DeviceListMsg:
		m.devices.SetDevices(msg.Devices, m.GetDeviceName())
		m.log.Add(eventf(styles.StatusConnected, "%d device(s) found", len(msg.Devices)))

	case models.CameraStatusMsg:
		prev := m.GetStatus()
		m.SetStatus(msg.Status)
		status := msg.Status
		m.statusBar.SetCameraStatus(&status)

		if status.State != prev.State {
			m.log.Add(eventf(styles.StatusConnecting, "state: %s → %s", prev.State, status.State))

			// A finished exposure is read out as soon as it is seen.
			if status.State == fli.StateAwaitingReadout {
				if h, ok := m.GetHandle(); ok {
					cmds = append(cmds, func() tea.Msg {
						start := time.Now()
						if err := fli.EndExposure(h); err != nil {
							return eventf(styles.StatusError, "end exposure: %v", err)
						}
						frame, err := fli.GrabFrame(h)
						if err != nil {
							return eventf(styles.StatusError, "readout: %v", err)
						}
						return models.FrameReadMsg{
							Bytes:     len(frame),
							Elapsed:   time.Since(start),
							Timestamp: time.Now(),
						}
					})
				}
			}
		}

	case models.FrameReadMsg:
		m.log.Add(eventf(styles.StatusConnected, "frame read: %d bytes in %v",
			msg.Bytes, msg.Elapsed.Round(time.Millisecond)))

	case components.EventMsg:
		m.log.Add(msg)

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			switch {
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, tea.Batch(cmds...)
			case key.Matches(msg, m.keys.Enter):
				value := strings.TrimSpace(m.input.Value())
				if value != "" {
					d, err := time.ParseDuration(value)
					if err != nil || d <= 0 {
						m.log.Add(eventf(styles.StatusError, "bad exposure time %q", value))
					} else {
						m.SetExposure(d)
						m.input.AddToHistory(value)
						if h, ok := m.GetHandle(); ok {
							cmds = append(cmds, func() tea.Msg {
								if err := fli.SetExposureTime(h, d.Milliseconds()); err != nil {
									return eventf(styles.StatusError, "set exposure time: %v", err)
								}
								return eventf(styles.StatusConnected, "exposure time set to %v", d)
							})
						}
					}
					m.input.SetValue("")
				}
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, tea.Batch(cmds...)
			case key.Matches(msg, m.keys.Up):
				m.input.NavigateHistoryUp()
				return m, tea.Batch(cmds...)
			case key.Matches(msg, m.keys.Down):
				m.input.NavigateHistoryDown()
				return m, tea.Batch(cmds...)
			}
		} else {
			switch {
			case key.Matches(msg, m.keys.Quit):
				m.Cleanup()
				return m, tea.Quit

			case key.Matches(msg, m.keys.InsertMode):
				m.SetInputMode(models.InputModeInsert)
				m.input.Focus()
				return m, tea.Batch(cmds...)

			case key.Matches(msg, m.keys.Expose):
				if h, ok := m.GetHandle(); ok {
					d := m.GetExposure()
					cmds = append(cmds, func() tea.Msg {
						if err := fli.SetExposureTime(h, d.Milliseconds()); err != nil {
							return eventf(styles.StatusError, "set exposure time: %v", err)
						}
						if err := fli.ExposeFrame(h); err != nil {
							return eventf(styles.StatusError, "expose: %v", err)
						}
						return eventf(styles.StatusConnected, "exposure started (%v)", d)
					})
				}

			case key.Matches(msg, m.keys.Cancel):
				if h, ok := m.GetHandle(); ok {
					cmds = append(cmds, func() tea.Msg {
						if err := fli.CancelExposure(h); err != nil {
							return eventf(styles.StatusError, "cancel: %v", err)
						}
						return eventf(styles.StatusConnecting, "exposure cancelled")
					})
				}

			case key.Matches(msg, m.keys.TempUp), key.Matches(msg, m.keys.TempDown):
				delta := 5.0
				if key.Matches(msg, m.keys.TempDown) {
					delta = -5.0
				}
				setpoint := m.GetSetpoint() + delta
				if setpoint < -55 {
					setpoint = -55
				}
				if setpoint > 45 {
					setpoint = 45
				}
				m.SetSetpoint(setpoint)
				if h, ok := m.GetHandle(); ok {
					cmds = append(cmds, func() tea.Msg {
						if err := fli.SetTemperature(h, setpoint); err != nil {
							return eventf(styles.StatusError, "set temperature: %v", err)
						}
						return eventf(styles.StatusConnected, "cooler setpoint %.0f°C", setpoint)
					})
				}

			case key.Matches(msg, m.keys.Refresh):
				cmds = append(cmds, func() tea.Msg {
					devs, err := fli.List(deviceDomain(fli.DeviceNone))
					if err != nil {
						return eventf(styles.StatusError, "scan: %v", err)
					}
					return models.DeviceListMsg{Devices: devs}
				})

			case key.Matches(msg, m.keys.Clear):
				m.log.Clear()

			case key.Matches(msg, m.keys.Help):
				m.help.ShowAll = !m.help.ShowAll

			case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
				var cmd tea.Cmd
				m.devices, cmd = m.devices.Update(msg)
				cmds = append(cmds, cmd)
			}
		}
	}

	var cmd tea.Cmd
	if m.IsInInsertMode() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch msg.(type) {
	case tea.WindowSizeMsg:
		_, cmd = m.log.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *monitorModel) View() string {
	var content string
	if m.IsReady() {
		content = m.log.View()
	} else {
		content = "Initializing..."
	}

	table := m.devices.View()
	logView := styles.ContentBorderStyle.Render(content)
	input := m.input.ViewWithMode(m.IsInInsertMode())
	helpView := m.help.View(m.keys)
	statusBar := m.statusBar.Render(m.IsConnected(), time.Now().Format("15:04:05"))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		table,
		logView,
		input,
		helpView,
		statusBar,
	)
}
