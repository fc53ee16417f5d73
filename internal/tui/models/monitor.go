package models

import (
	"context"
	"sync"
	"time"

	fli "github.com/openastro/go-fli"
	"github.com/openastro/go-fli/internal/tui/components"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// ConnectionStatusMsg reports the outcome of the background Open.
type ConnectionStatusMsg struct {
	Connected bool
	Error     error
}

// CameraStatusMsg carries one poll of the camera's state and thermals.
type CameraStatusMsg struct {
	Status    components.CameraStatus
	Timestamp time.Time
}

// DeviceListMsg carries a fresh device scan.
type DeviceListMsg struct {
	Devices []fli.DeviceInfo
}

// FrameReadMsg reports a completed readout.
type FrameReadMsg struct {
	Bytes     int
	Elapsed   time.Duration
	Timestamp time.Time
}

// MonitorModel is the shared state behind the monitor TUI: the device
// session, the last polled status, and the input mode.
type MonitorModel struct {
	handle     fli.Handle
	hasHandle  bool
	deviceName string

	connected bool
	err       error
	ready     bool

	inputMode InputMode

	exposure time.Duration
	setpoint float64
	status   components.CameraStatus

	cancel context.CancelFunc
	ctx    context.Context
	mu     sync.RWMutex
}

func NewMonitorModel(deviceName string) *MonitorModel {
	ctx, cancel := context.WithCancel(context.Background())

	return &MonitorModel{
		deviceName: deviceName,
		inputMode:  InputModeNormal,
		exposure:   100 * time.Millisecond,
		setpoint:   -20,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (m *MonitorModel) GetHandle() (fli.Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle, m.hasHandle
}

func (m *MonitorModel) SetHandle(h fli.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handle = h
	m.hasHandle = true
}

func (m *MonitorModel) GetDeviceName() string {
	return m.deviceName
}

func (m *MonitorModel) IsConnected() bool {
	return m.connected
}

func (m *MonitorModel) SetConnected(connected bool) {
	m.connected = connected
}

func (m *MonitorModel) GetError() error {
	return m.err
}

func (m *MonitorModel) SetError(err error) {
	m.err = err
}

func (m *MonitorModel) IsReady() bool {
	return m.ready
}

func (m *MonitorModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *MonitorModel) GetExposure() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exposure
}

func (m *MonitorModel) SetExposure(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exposure = d
}

func (m *MonitorModel) GetSetpoint() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.setpoint
}

func (m *MonitorModel) SetSetpoint(celsius float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setpoint = celsius
}

func (m *MonitorModel) GetStatus() components.CameraStatus {
	return m.status
}

func (m *MonitorModel) SetStatus(status components.CameraStatus) {
	m.status = status
}

func (m *MonitorModel) GetInputMode() InputMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode
}

func (m *MonitorModel) SetInputMode(mode InputMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputMode = mode
}

func (m *MonitorModel) IsInInsertMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode == InputModeInsert
}

func (m *MonitorModel) GetContext() context.Context {
	return m.ctx
}

func (m *MonitorModel) Cancel() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Cleanup stops the poll goroutines and closes the device session.
func (m *MonitorModel) Cleanup() {
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.Lock()
	if m.hasHandle {
		fli.Close(m.handle)
		m.hasHandle = false
	}
	m.mu.Unlock()
}
