package fli

import (
	"fmt"

	"github.com/openastro/go-fli/internal/wire"
)

// FrameType selects how the shutter behaves during an exposure.
type FrameType int

const (
	FrameTypeNormal FrameType = 0 // shutter open
	FrameTypeDark   FrameType = 1 // shutter closed
	FrameTypeFlood  FrameType = 2
	FrameTypeRBIFlush = FrameTypeFlood | FrameTypeDark
)

func (f FrameType) String() string {
	switch f {
	case FrameTypeNormal:
		return "normal"
	case FrameTypeDark:
		return "dark"
	case FrameTypeFlood:
		return "flood"
	case FrameTypeRBIFlush:
		return "rbi-flush"
	default:
		return fmt.Sprintf("FrameType(%d)", int(f))
	}
}

// BitDepth is the grayscale depth of the readout.
type BitDepth int

const (
	Mode8Bit  BitDepth = 0
	Mode16Bit BitDepth = 1
)

// BytesPerPixel returns the readout size of one pixel.
func (b BitDepth) BytesPerPixel() int {
	if b == Mode8Bit {
		return 1
	}
	return 2
}

// Shutter commands for ControlShutter.
type Shutter int

const (
	ShutterClose               Shutter = 0x0000
	ShutterOpen                Shutter = 0x0001
	ShutterExternalTriggerLow  Shutter = 0x0002
	ShutterExternalTriggerHigh Shutter = 0x0004
	ShutterExternalExposure    Shutter = 0x0008

	// ShutterExternalTrigger keeps the original low-polarity alias.
	ShutterExternalTrigger = ShutterExternalTriggerLow
)

// Background flush control values.
type BGFlush int

const (
	BGFlushStop  BGFlush = 0x0000
	BGFlushStart BGFlush = 0x0001
)

// Temperature channels for ReadTemperature.
type TemperatureChannel int

const (
	TemperatureInternal TemperatureChannel = 0x0000
	TemperatureExternal TemperatureChannel = 0x0001
	TemperatureCCD                         = TemperatureInternal
	TemperatureBase                        = TemperatureExternal
)

// Fan speed settings.
const (
	FanSpeedOff int64 = 0x00
	FanSpeedOn  int64 = -1 // all bits set, the instrument's "on" word
)

const (
	minBin = 1
	maxBin = 16

	minSetpoint = -55.0
	maxSetpoint = 45.0
)

// CameraConfig is the device-type-specific mutable configuration of a
// camera session.
type CameraConfig struct {
	ExposureMS int64
	FrameType  FrameType
	BitDepth   BitDepth
	HBin       int
	VBin       int
	// Region of interest: upper-left in unbinned coordinates,
	// lower-right in binned coordinates, as the instrument expects.
	ULX, ULY, LRX, LRY int
	NFlushes           int
}

func defaultCameraConfig() CameraConfig {
	return CameraConfig{
		ExposureMS: 100,
		FrameType:  FrameTypeNormal,
		BitDepth:   Mode16Bit,
		HBin:       1,
		VBin:       1,
	}
}

// Width returns the binned row width of the configured region.
func (c CameraConfig) Width() int { return c.LRX - c.ULX }

// Height returns the row count of the configured region.
func (c CameraConfig) Height() int { return c.LRY - c.ULY }

// seedCameraDefaults primes the session's region of interest from the
// device's visible area, so a bare expose reads the full sensor.
func (s *session) seedCameraDefaults() error {
	resp, err := s.exchange(wire.OpGetVisibleArea, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cam.ULX = int(wire.Int32(resp[0:]))
	s.cam.ULY = int(wire.Int32(resp[4:]))
	s.cam.LRX = int(wire.Int32(resp[8:]))
	s.cam.LRY = int(wire.Int32(resp[12:]))
	s.mu.Unlock()
	return nil
}

func cameraFor(h Handle) (*session, error) {
	return sessionFor(h, DeviceCamera)
}

// configure runs one configuration exchange under the session mutex,
// enforcing that configuration only changes while the session is Idle
// and the device lock permits mutation. The session state passes
// through Configuring for the duration of the exchange and commits
// back to Idle only after the device acknowledges.
func (s *session) configure(op wire.Op, payload []byte, commit func(*CameraConfig)) error {
	if err := s.checkMutate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: cannot configure while %v", ErrInvalidSequence, s.state)
	}
	s.state = StateConfiguring
	_, err := s.exchange(op, payload)
	s.state = StateIdle
	if err != nil {
		return err
	}
	commit(&s.cam)
	return nil
}

// SetExposureTime sets the exposure time in milliseconds.
func SetExposureTime(h Handle, ms int64) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if ms < 0 {
		return fmt.Errorf("%w: exposure time %dms", ErrInvalidArgument, ms)
	}
	return sess.configure(wire.OpSetExposureTime, wire.AppendInt32(nil, int32(ms)),
		func(c *CameraConfig) { c.ExposureMS = ms })
}

// SetImageArea sets the region of interest. The upper-left corner is
// given in unbinned coordinates and the lower-right corner in binned
// coordinates, matching the instrument's convention.
func SetImageArea(h Handle, ulx, uly, lrx, lry int) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if lrx <= ulx || lry <= uly {
		return fmt.Errorf("%w: empty image area (%d,%d)-(%d,%d)", ErrInvalidArgument, ulx, uly, lrx, lry)
	}
	payload := wire.AppendInt32(nil, int32(ulx))
	payload = wire.AppendInt32(payload, int32(uly))
	payload = wire.AppendInt32(payload, int32(lrx))
	payload = wire.AppendInt32(payload, int32(lry))
	return sess.configure(wire.OpSetImageArea, payload,
		func(c *CameraConfig) { c.ULX, c.ULY, c.LRX, c.LRY = ulx, uly, lrx, lry })
}

// SetHBin sets the horizontal binning factor (1-16).
func SetHBin(h Handle, bin int) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if bin < minBin || bin > maxBin {
		return fmt.Errorf("%w: hbin %d", ErrInvalidArgument, bin)
	}
	return sess.configure(wire.OpSetHBin, wire.AppendInt32(nil, int32(bin)),
		func(c *CameraConfig) { c.HBin = bin })
}

// SetVBin sets the vertical binning factor (1-16).
func SetVBin(h Handle, bin int) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if bin < minBin || bin > maxBin {
		return fmt.Errorf("%w: vbin %d", ErrInvalidArgument, bin)
	}
	return sess.configure(wire.OpSetVBin, wire.AppendInt32(nil, int32(bin)),
		func(c *CameraConfig) { c.VBin = bin })
}

// SetFrameType selects normal, dark, flood, or RBI-flush frames.
func SetFrameType(h Handle, ft FrameType) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	switch ft {
	case FrameTypeNormal, FrameTypeDark, FrameTypeFlood, FrameTypeRBIFlush:
	default:
		return fmt.Errorf("%w: frame type %d", ErrInvalidArgument, int(ft))
	}
	return sess.configure(wire.OpSetFrameType, wire.AppendInt32(nil, int32(ft)),
		func(c *CameraConfig) { c.FrameType = ft })
}

// SetBitDepth selects 8- or 16-bit readout.
func SetBitDepth(h Handle, depth BitDepth) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if depth != Mode8Bit && depth != Mode16Bit {
		return fmt.Errorf("%w: bit depth %d", ErrInvalidArgument, int(depth))
	}
	return sess.configure(wire.OpSetBitDepth, wire.AppendInt32(nil, int32(depth)),
		func(c *CameraConfig) { c.BitDepth = depth })
}

// SetNFlushes sets how many background flushes precede an exposure.
func SetNFlushes(h Handle, n int) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: %d flushes", ErrInvalidArgument, n)
	}
	return sess.configure(wire.OpSetNFlushes, wire.AppendInt32(nil, int32(n)),
		func(c *CameraConfig) { c.NFlushes = n })
}

// GetCameraConfig returns a snapshot of the session's camera
// configuration.
func GetCameraConfig(h Handle) (CameraConfig, error) {
	sess, err := cameraFor(h)
	if err != nil {
		return CameraConfig{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.cam, nil
}

// GetExposureState returns the session's position in the exposure
// lifecycle.
func GetExposureState(h Handle) (ExposureState, error) {
	sess, err := cameraFor(h)
	if err != nil {
		return StateIdle, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state, nil
}

// ---- geometry ----

func getArea(h Handle, op wire.Op) (ulx, uly, lrx, lry int, err error) {
	sess, err := cameraFor(h)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	resp, err := sess.exchange(op, nil)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return int(wire.Int32(resp[0:])), int(wire.Int32(resp[4:])),
		int(wire.Int32(resp[8:])), int(wire.Int32(resp[12:])), nil
}

// GetArrayArea returns the full CCD array extent including dark
// columns.
func GetArrayArea(h Handle) (ulx, uly, lrx, lry int, err error) {
	return getArea(h, wire.OpGetArrayArea)
}

// GetVisibleArea returns the light-sensitive extent of the CCD array.
func GetVisibleArea(h Handle) (ulx, uly, lrx, lry int, err error) {
	return getArea(h, wire.OpGetVisibleArea)
}

// GetReadoutDimensions returns the device's current readout geometry:
// binned width and height with their offsets and bin factors.
func GetReadoutDimensions(h Handle) (width, hoffset, hbin, height, voffset, vbin int, err error) {
	sess, err := cameraFor(h)
	if err != nil {
		return 0, 0, 0, 0, 0, 0, err
	}
	resp, err := sess.exchange(wire.OpGetReadoutDims, nil)
	if err != nil {
		return 0, 0, 0, 0, 0, 0, err
	}
	return int(wire.Int32(resp[0:])), int(wire.Int32(resp[4:])), int(wire.Int32(resp[8:])),
		int(wire.Int32(resp[12:])), int(wire.Int32(resp[16:])), int(wire.Int32(resp[20:])), nil
}

// GetPixelSize returns the physical pixel dimensions in microns.
func GetPixelSize(h Handle) (x, y float64, err error) {
	sess, err := cameraFor(h)
	if err != nil {
		return 0, 0, err
	}
	resp, err := sess.exchange(wire.OpGetPixelSize, nil)
	if err != nil {
		return 0, 0, err
	}
	return wire.Float64(resp[0:]), wire.Float64(resp[8:]), nil
}

// ---- exposure lifecycle ----

// ExposeFrame starts an exposure with the session's current
// configuration. It returns as soon as the device acknowledges the
// start; completion is observed through GetExposureStatus. Legal only
// while Idle.
func ExposeFrame(h Handle) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateIdle {
		return fmt.Errorf("%w: expose while %v", ErrInvalidSequence, sess.state)
	}
	if sess.cam.Width() <= 0 || sess.cam.Height() <= 0 {
		return fmt.Errorf("%w: image area not configured", ErrInvalidArgument)
	}

	if _, err := sess.exchange(wire.OpExposeFrame, nil); err != nil {
		return err
	}
	sess.state = StateExposing
	sess.rowsRead = 0
	sess.readoutW = sess.cam.Width()
	sess.readoutH = sess.cam.Height()
	sess.bytesPP = sess.cam.BitDepth.BytesPerPixel()
	sess.triggered = false
	return nil
}

// GetExposureStatus returns the remaining exposure time in
// milliseconds. Zero means the frame is ready for readout; observing
// that moves an Exposing session to AwaitingReadout.
func GetExposureStatus(h Handle) (remainingMS int64, err error) {
	sess, err := cameraFor(h)
	if err != nil {
		return 0, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	resp, err := sess.exchange(wire.OpExposureStatus, nil)
	if err != nil {
		return 0, err
	}
	remaining := int64(wire.Int32(resp[0:]))
	status := uint32(wire.Int32(resp[4:]))

	if sess.state == StateExposing &&
		(remaining == 0 || status&wire.CameraDataReady != 0) {
		sess.state = StateAwaitingReadout
	}
	return remaining, nil
}

// CancelExposure aborts a running exposure and discards its data.
// Cancelling a session that is not exposing is a no-op, so callers can
// cancel unconditionally on teardown paths.
func CancelExposure(h Handle) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	switch sess.state {
	case StateIdle:
		return nil
	case StateExposing, StateAwaitingReadout:
		if _, err := sess.exchange(wire.OpCancelExposure, nil); err != nil {
			return err
		}
		sess.state = StateIdle
		return nil
	default:
		return fmt.Errorf("%w: cancel while %v", ErrInvalidSequence, sess.state)
	}
}

// EndExposure finishes the exposure and begins readout. It either
// terminates an in-progress exposure early or acknowledges natural
// completion; afterwards the frame is drained with GrabRow or
// GrabFrame.
func EndExposure(h Handle) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateExposing && sess.state != StateAwaitingReadout {
		return fmt.Errorf("%w: end exposure while %v", ErrInvalidSequence, sess.state)
	}
	if _, err := sess.exchange(wire.OpEndExposure, nil); err != nil {
		return err
	}
	sess.state = StateReadingOut
	sess.rowsRead = 0
	return nil
}

// TriggerExposure fires an exposure armed for an external trigger,
// substituting for the hardware trigger signal. Legal only while the
// session is Exposing (i.e. the device is waiting for the trigger).
func TriggerExposure(h Handle) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateExposing {
		return fmt.Errorf("%w: trigger while %v", ErrInvalidSequence, sess.state)
	}
	if _, err := sess.exchange(wire.OpTriggerExposure, nil); err != nil {
		return err
	}
	sess.triggered = true
	return nil
}

// GrabRow reads the next row of the frame into buf and returns the
// number of bytes written. Rows come out in strict top-to-bottom
// order; requesting more rows than the configured height is an
// over-read error. Draining the final row returns the session to Idle.
func GrabRow(h Handle, buf []byte) (int, error) {
	sess, err := cameraFor(h)
	if err != nil {
		return 0, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.grabRowLocked(buf)
}

func (s *session) grabRowLocked(buf []byte) (int, error) {
	if s.state != StateReadingOut {
		// Draining the final row parks the session in Idle with the
		// row cursor latched at the bottom; a further grab on that
		// session is an over-read, not a sequencing mistake. The
		// cursor resets when the next exposure starts.
		if s.state == StateIdle && s.readoutH > 0 && s.rowsRead >= s.readoutH {
			return 0, fmt.Errorf("%w: frame already drained (%d rows)", ErrInvalidArgument, s.readoutH)
		}
		return 0, fmt.Errorf("%w: grab row while %v", ErrInvalidSequence, s.state)
	}
	rowBytes := s.readoutW * s.bytesPP
	if len(buf) < rowBytes {
		return 0, fmt.Errorf("%w: row buffer %d bytes, need %d", ErrInvalidArgument, len(buf), rowBytes)
	}

	resp, err := s.exchange(wire.OpGrabRow, wire.AppendInt32(nil, int32(s.rowsRead)))
	if err != nil {
		return 0, err
	}
	if len(resp) != rowBytes {
		return 0, fmt.Errorf("%w: row payload %d bytes, want %d", ErrTransport, len(resp), rowBytes)
	}

	copy(buf, resp)
	s.rowsRead++
	if s.rowsRead == s.readoutH {
		s.state = StateIdle
	}
	return rowBytes, nil
}

// GrabFrame drains the whole frame and returns exactly
// width*height*bytesPerPixel bytes. The session must be ReadingOut
// (EndExposure has been called); afterwards it is Idle.
func GrabFrame(h Handle) ([]byte, error) {
	sess, err := cameraFor(h)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateReadingOut {
		return nil, fmt.Errorf("%w: grab frame while %v", ErrInvalidSequence, sess.state)
	}

	rowBytes := sess.readoutW * sess.bytesPP
	frame := make([]byte, rowBytes*sess.readoutH)
	row := frame
	for sess.rowsRead < sess.readoutH {
		if _, err := sess.grabRowLocked(row[:rowBytes]); err != nil {
			return nil, err
		}
		row = row[rowBytes:]
	}
	return frame, nil
}

// FlushRow discards rows from the CCD without reading them out,
// repeated the given number of times. Legal only while Idle.
func FlushRow(h Handle, rows, repeat int) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if rows <= 0 || repeat <= 0 {
		return fmt.Errorf("%w: flush %d rows x%d", ErrInvalidArgument, rows, repeat)
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateIdle {
		return fmt.Errorf("%w: flush rows while %v", ErrInvalidSequence, sess.state)
	}
	payload := wire.AppendInt32(nil, int32(rows))
	payload = wire.AppendInt32(payload, int32(repeat))
	_, err = sess.exchange(wire.OpFlushRow, payload)
	return err
}

// ---- thermal, shutter, and auxiliary controls ----

// SetTemperature sets the cooler setpoint in degrees Celsius
// (-55 to 45).
func SetTemperature(h Handle, celsius float64) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if celsius < minSetpoint || celsius > maxSetpoint {
		return fmt.Errorf("%w: setpoint %.1fC", ErrInvalidArgument, celsius)
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}
	_, err = sess.exchange(wire.OpSetTemperature, wire.AppendFloat64(nil, celsius))
	return err
}

// GetTemperature returns the CCD cold-finger temperature in degrees
// Celsius. Read-only; legal regardless of lock or exposure state.
func GetTemperature(h Handle) (float64, error) {
	return getFloat(h, wire.OpGetTemperature, nil)
}

// GetCoolerPower returns the cooler drive power in percent.
func GetCoolerPower(h Handle) (float64, error) {
	return getFloat(h, wire.OpGetCoolerPower, nil)
}

// ReadTemperature reads the given temperature channel. Focusers expose
// the same channels, so this accepts any device class that implements
// the command.
func ReadTemperature(h Handle, channel TemperatureChannel) (float64, error) {
	return getFloat(h, wire.OpReadTemperature, wire.AppendInt32(nil, int32(channel)))
}

func getFloat(h Handle, op wire.Op, payload []byte) (float64, error) {
	sess, err := sessionFor(h, DeviceNone)
	if err != nil {
		return 0, err
	}
	resp, err := sess.exchange(op, payload)
	if err != nil {
		return 0, err
	}
	return wire.Float64(resp), nil
}

// ControlShutter operates the mechanical shutter directly or arms an
// external trigger edge.
func ControlShutter(h Handle, mode Shutter) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	switch mode {
	case ShutterClose, ShutterOpen, ShutterExternalTriggerLow,
		ShutterExternalTriggerHigh, ShutterExternalExposure:
	default:
		return fmt.Errorf("%w: shutter mode 0x%x", ErrInvalidArgument, int(mode))
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}
	_, err = sess.exchange(wire.OpControlShutter, wire.AppendInt32(nil, int32(mode)))
	return err
}

// ControlBackgroundFlush starts or stops background flushing of the
// CCD array. The device stops flushing on its own when an exposure
// starts.
func ControlBackgroundFlush(h Handle, mode BGFlush) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if mode != BGFlushStop && mode != BGFlushStart {
		return fmt.Errorf("%w: bgflush mode %d", ErrInvalidArgument, int(mode))
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}
	_, err = sess.exchange(wire.OpControlBGFlush, wire.AppendInt32(nil, int32(mode)))
	return err
}

// SetFanSpeed turns the cooling fan on or off.
func SetFanSpeed(h Handle, speed int64) error {
	sess, err := cameraFor(h)
	if err != nil {
		return err
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}
	_, err = sess.exchange(wire.OpSetFanSpeed, wire.AppendInt32(nil, int32(speed)))
	return err
}
