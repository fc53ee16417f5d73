// Package simdev implements an in-process simulated instrument that
// speaks the framed command protocol over a net.Pipe. It backs the
// test suite and the CLI's --simulate mode, so every command path can
// be exercised without hardware on the bench.
package simdev

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/openastro/go-fli/internal/wire"
)

// Kind selects which instrument a Device simulates.
type Kind int

const (
	KindCamera Kind = iota
	KindFilterWheel
	KindFocuser
)

// Config sets the simulated instrument's persona and timing.
type Config struct {
	Model  string
	Serial string
	HWRev  int32
	FWRev  int32

	// TimeScale divides all simulated durations. 1 is real time;
	// tests run at 1000 or more so a ten second exposure finishes in
	// milliseconds. Zero means 1.
	TimeScale float64

	// Camera geometry, in unbinned pixels.
	ArrayWidth    int
	ArrayHeight   int
	VisibleULX    int
	VisibleULY    int
	PixelSizeX    float64 // microns
	PixelSizeY    float64
	AmbientTemp   float64
	FilterSlots   int
	FocuserExtent int
}

func (c *Config) fill(kind Kind) {
	if c.Model == "" {
		switch kind {
		case KindCamera:
			c.Model = "MicroLine ML4022"
		case KindFilterWheel:
			c.Model = "CFW-2-7"
		case KindFocuser:
			c.Model = "Atlas Focuser"
		}
	}
	if c.Serial == "" {
		c.Serial = "SW0001"
	}
	if c.HWRev == 0 {
		c.HWRev = 0x0100
	}
	if c.FWRev == 0 {
		c.FWRev = 0x0203
	}
	if c.TimeScale <= 0 {
		c.TimeScale = 1
	}
	if c.ArrayWidth == 0 {
		c.ArrayWidth = 2112
	}
	if c.ArrayHeight == 0 {
		c.ArrayHeight = 2072
	}
	if c.VisibleULX == 0 && c.ArrayWidth > 2048 {
		c.VisibleULX = (c.ArrayWidth - 2048) / 2
	}
	if c.VisibleULY == 0 && c.ArrayHeight > 2048 {
		c.VisibleULY = (c.ArrayHeight - 2048) / 2
	}
	if c.PixelSizeX == 0 {
		c.PixelSizeX = 7.4
	}
	if c.PixelSizeY == 0 {
		c.PixelSizeY = 7.4
	}
	if c.AmbientTemp == 0 {
		c.AmbientTemp = 21.5
	}
	if c.FilterSlots == 0 {
		c.FilterSlots = 7
	}
	if c.FocuserExtent == 0 {
		c.FocuserExtent = 7000
	}
}

// Device is one simulated instrument. All state is guarded by mu; the
// serve loop is the only writer once Start has been called, but tests
// inspect state concurrently.
type Device struct {
	kind Kind
	cfg  Config

	mu sync.Mutex

	// camera
	exposureMS int64
	frameType  int32
	bitDepth   int32
	hbin, vbin int32
	ulx, uly   int32 // unbinned
	lrx, lry   int32 // binned
	nflushes   int32
	exposing   bool
	waitTrig   bool
	expEnd     time.Time
	dataReady  bool
	rowCursor  int32
	setpoint   float64
	bgFlush    bool
	ioPort     int32
	ioDir      int32
	eeprom     map[int32][]byte

	// filter wheel
	filterPos   int32
	activeWheel int32
	filterNames []string

	// focuser
	stepperPos int32

	closed chan struct{}
}

// New returns an unstarted simulated instrument of the given kind.
func New(kind Kind, cfg Config) *Device {
	cfg.fill(kind)
	d := &Device{
		kind:      kind,
		cfg:       cfg,
		bitDepth:  1, // 16-bit
		hbin:      1,
		vbin:      1,
		filterPos: int32(wire.FilterPositionUnknown),
		setpoint:  cfg.AmbientTemp,
		eeprom:    map[int32][]byte{},
		closed:    make(chan struct{}),
	}
	for i := 0; i < cfg.FilterSlots; i++ {
		d.filterNames = append(d.filterNames, defaultFilterNames[i%len(defaultFilterNames)])
	}
	return d
}

var defaultFilterNames = []string{
	"Luminance", "Red", "Green", "Blue", "Ha", "OIII", "SII",
}

// Start launches the serve loop and returns the client end of the
// pipe. The device stops when the client end is closed.
func (d *Device) Start() net.Conn {
	client, server := net.Pipe()
	go d.serve(server)
	return client
}

// Stop tears the device down independently of the client.
func (d *Device) Stop() {
	select {
	case <-d.closed:
	default:
		close(d.closed)
	}
}

func (d *Device) serve(conn net.Conn) {
	defer conn.Close()
	go func() {
		<-d.closed
		conn.Close()
	}()

	var rbuf []byte
	buf := make([]byte, 4096)
	for {
		for len(rbuf) > 0 {
			frame, consumed, err := wire.ParseFrame(rbuf)
			if errors.Is(err, wire.ErrShortFrame) {
				break
			}
			if err != nil {
				rbuf = rbuf[1:]
				continue
			}
			rbuf = rbuf[consumed:]
			if frame.Start != wire.STX {
				continue
			}
			if !d.respond(conn, frame) {
				return
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			rbuf = append(rbuf, buf[:n]...)
		}
		if err != nil {
			return
		}
	}
}

func (d *Device) respond(conn net.Conn, cmd wire.Frame) bool {
	payload, fault := d.handle(cmd.Op, cmd.Payload)
	start := byte(wire.ACK)
	if fault != 0 {
		start = wire.NAK
		payload = []byte{fault}
	}
	resp := wire.AppendFrame(nil, start, cmd.Op, cmd.Seq, payload)
	for len(resp) > 0 {
		n, err := conn.Write(resp)
		if err != nil {
			return false
		}
		resp = resp[n:]
	}
	return true
}

// handle executes one command against the simulated state. It returns
// the ACK payload, or a nonzero fault code for a NAK.
func (d *Device) handle(op wire.Op, arg []byte) ([]byte, byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch op {
	case wire.OpGetModel:
		return append([]byte(d.cfg.Model), 0), 0
	case wire.OpGetSerial:
		return append([]byte(d.cfg.Serial), 0), 0
	case wire.OpGetHWRevision:
		return wire.AppendInt32(nil, d.cfg.HWRev), 0
	case wire.OpGetFWRevision:
		return wire.AppendInt32(nil, d.cfg.FWRev), 0
	case wire.OpGetDeviceStatus:
		return wire.AppendInt32(nil, int32(d.statusWord())), 0
	case wire.OpReadIOPort:
		return wire.AppendInt32(nil, d.ioPort), 0
	case wire.OpWriteIOPort:
		if len(arg) < 4 {
			return nil, wire.FaultBadParameter
		}
		d.ioPort = wire.Int32(arg) & d.ioDir
		return nil, 0
	case wire.OpConfigureIOPort:
		if len(arg) < 4 {
			return nil, wire.FaultBadParameter
		}
		d.ioDir = wire.Int32(arg)
		return nil, 0
	case wire.OpReadEEPROM:
		return d.readEEPROM(arg)
	case wire.OpWriteEEPROM:
		return d.writeEEPROM(arg)
	case wire.OpReadTemperature:
		if len(arg) < 4 {
			return nil, wire.FaultBadParameter
		}
		return wire.AppendFloat64(nil, d.temperature()), 0
	}

	switch d.kind {
	case KindCamera:
		return d.handleCamera(op, arg)
	case KindFilterWheel:
		return d.handleFilterWheel(op, arg)
	case KindFocuser:
		return d.handleFocuser(op, arg)
	}
	return nil, wire.FaultUnknownOp
}

func (d *Device) statusWord() uint32 {
	switch d.kind {
	case KindCamera:
		var w uint32
		switch {
		case d.waitTrig:
			w = wire.CameraStatusWaitTrig
		case d.exposing && !d.exposureDone():
			w = wire.CameraStatusExposing
		default:
			w = wire.CameraStatusIdle
		}
		if d.exposing && d.exposureDone() {
			w |= wire.CameraDataReady
		}
		return w
	default:
		// Simulated motion completes instantly, so wheels and
		// focusers always report stopped.
		return 0
	}
}

func (d *Device) temperature() float64 {
	if d.kind == KindCamera {
		// The cooler is ideal: the CCD sits at the setpoint.
		return d.setpoint
	}
	return d.cfg.AmbientTemp
}

func (d *Device) readEEPROM(arg []byte) ([]byte, byte) {
	if len(arg) < 12 {
		return nil, wire.FaultBadParameter
	}
	loc := wire.Int32(arg[0:])
	addr := wire.Int32(arg[4:])
	length := wire.Int32(arg[8:])
	if addr < 0 || length <= 0 || int(length) > wire.MaxPayload {
		return nil, wire.FaultBadParameter
	}
	out := make([]byte, length)
	copy(out, d.eepromAt(loc, addr, length))
	return out, 0
}

func (d *Device) writeEEPROM(arg []byte) ([]byte, byte) {
	if len(arg) < 8 {
		return nil, wire.FaultBadParameter
	}
	loc := wire.Int32(arg[0:])
	addr := wire.Int32(arg[4:])
	data := arg[8:]
	if addr < 0 || len(data) == 0 {
		return nil, wire.FaultBadParameter
	}
	mem := d.eeprom[loc]
	if need := int(addr) + len(data); len(mem) < need {
		mem = append(mem, make([]byte, need-len(mem))...)
	}
	copy(mem[addr:], data)
	d.eeprom[loc] = mem
	return nil, 0
}

func (d *Device) eepromAt(loc, addr, length int32) []byte {
	mem := d.eeprom[loc]
	if int(addr) >= len(mem) {
		return nil
	}
	end := int(addr + length)
	if end > len(mem) {
		end = len(mem)
	}
	return mem[addr:end]
}

// ---- camera ----

func (d *Device) handleCamera(op wire.Op, arg []byte) ([]byte, byte) {
	argInt := func() (int32, bool) {
		if len(arg) < 4 {
			return 0, false
		}
		return wire.Int32(arg), true
	}

	switch op {
	case wire.OpSetExposureTime:
		v, ok := argInt()
		if !ok || v < 0 {
			return nil, wire.FaultBadParameter
		}
		d.exposureMS = int64(v)
		return nil, 0
	case wire.OpSetImageArea:
		if len(arg) < 16 {
			return nil, wire.FaultBadParameter
		}
		ulx, uly := wire.Int32(arg[0:]), wire.Int32(arg[4:])
		lrx, lry := wire.Int32(arg[8:]), wire.Int32(arg[12:])
		if lrx <= ulx || lry <= uly {
			return nil, wire.FaultBadParameter
		}
		d.ulx, d.uly, d.lrx, d.lry = ulx, uly, lrx, lry
		return nil, 0
	case wire.OpSetHBin:
		v, ok := argInt()
		if !ok || v < 1 || v > 16 {
			return nil, wire.FaultBadParameter
		}
		d.hbin = v
		return nil, 0
	case wire.OpSetVBin:
		v, ok := argInt()
		if !ok || v < 1 || v > 16 {
			return nil, wire.FaultBadParameter
		}
		d.vbin = v
		return nil, 0
	case wire.OpSetFrameType:
		v, ok := argInt()
		if !ok || v < 0 || v > 3 {
			return nil, wire.FaultBadParameter
		}
		d.frameType = v
		return nil, 0
	case wire.OpSetBitDepth:
		v, ok := argInt()
		if !ok || (v != 0 && v != 1) {
			return nil, wire.FaultBadParameter
		}
		d.bitDepth = v
		return nil, 0
	case wire.OpSetNFlushes:
		v, ok := argInt()
		if !ok || v < 0 {
			return nil, wire.FaultBadParameter
		}
		d.nflushes = v
		return nil, 0

	case wire.OpGetArrayArea:
		out := wire.AppendInt32(nil, 0)
		out = wire.AppendInt32(out, 0)
		out = wire.AppendInt32(out, int32(d.cfg.ArrayWidth))
		return wire.AppendInt32(out, int32(d.cfg.ArrayHeight)), 0
	case wire.OpGetVisibleArea:
		out := wire.AppendInt32(nil, int32(d.cfg.VisibleULX))
		out = wire.AppendInt32(out, int32(d.cfg.VisibleULY))
		out = wire.AppendInt32(out, int32(d.cfg.ArrayWidth-d.cfg.VisibleULX))
		return wire.AppendInt32(out, int32(d.cfg.ArrayHeight-d.cfg.VisibleULY)), 0
	case wire.OpGetReadoutDims:
		out := wire.AppendInt32(nil, d.frameWidth())
		out = wire.AppendInt32(out, d.ulx)
		out = wire.AppendInt32(out, d.hbin)
		out = wire.AppendInt32(out, d.frameHeight())
		out = wire.AppendInt32(out, d.uly)
		return wire.AppendInt32(out, d.vbin), 0
	case wire.OpGetPixelSize:
		out := wire.AppendFloat64(nil, d.cfg.PixelSizeX)
		return wire.AppendFloat64(out, d.cfg.PixelSizeY), 0

	case wire.OpExposeFrame:
		if d.exposing {
			return nil, wire.FaultBadParameter
		}
		d.exposing = true
		d.dataReady = false
		d.rowCursor = 0
		d.bgFlush = false
		if d.waitTrig {
			// Armed for an external trigger: the clock starts when
			// the trigger fires, not now.
			d.expEnd = time.Time{}
		} else {
			d.expEnd = time.Now().Add(d.exposureDuration())
		}
		return nil, 0
	case wire.OpExposureStatus:
		remaining := int64(0)
		switch {
		case d.exposing && d.waitTrig:
			// Untriggered: the whole exposure is still outstanding.
			remaining = d.exposureMS
			if remaining == 0 {
				remaining = 1
			}
		case d.exposing:
			if left := time.Until(d.expEnd); left > 0 {
				remaining = int64(left.Seconds() * d.cfg.TimeScale * 1000)
				if remaining == 0 {
					remaining = 1
				}
			}
		}
		out := wire.AppendInt32(nil, int32(remaining))
		return wire.AppendInt32(out, int32(d.statusWord())), 0
	case wire.OpCancelExposure:
		d.exposing = false
		d.waitTrig = false
		d.dataReady = false
		return nil, 0
	case wire.OpEndExposure:
		if !d.exposing {
			return nil, wire.FaultBadParameter
		}
		d.exposing = false
		d.dataReady = true
		d.rowCursor = 0
		return nil, 0
	case wire.OpTriggerExposure:
		if !d.exposing {
			return nil, wire.FaultBadParameter
		}
		if d.waitTrig {
			d.waitTrig = false
			d.expEnd = time.Now().Add(d.exposureDuration())
		}
		return nil, 0
	case wire.OpGrabRow:
		return d.grabRow(arg)
	case wire.OpFlushRow:
		if len(arg) < 8 {
			return nil, wire.FaultBadParameter
		}
		return nil, 0

	case wire.OpSetTemperature:
		if len(arg) < 8 {
			return nil, wire.FaultBadParameter
		}
		d.setpoint = wire.Float64(arg)
		return nil, 0
	case wire.OpGetTemperature:
		return wire.AppendFloat64(nil, d.temperature()), 0
	case wire.OpGetCoolerPower:
		// Power tracks how far the setpoint sits below ambient.
		power := (d.cfg.AmbientTemp - d.setpoint) * 2
		if power < 0 {
			power = 0
		}
		if power > 100 {
			power = 100
		}
		return wire.AppendFloat64(nil, power), 0
	case wire.OpControlShutter:
		v, ok := argInt()
		if !ok {
			return nil, wire.FaultBadParameter
		}
		d.waitTrig = v == 0x02 || v == 0x04
		return nil, 0
	case wire.OpControlBGFlush:
		v, ok := argInt()
		if !ok || (v != 0 && v != 1) {
			return nil, wire.FaultBadParameter
		}
		d.bgFlush = v == 1
		return nil, 0
	case wire.OpSetFanSpeed:
		if _, ok := argInt(); !ok {
			return nil, wire.FaultBadParameter
		}
		return nil, 0
	}
	return nil, wire.FaultWrongDevice
}

func (d *Device) exposureDuration() time.Duration {
	return time.Duration(float64(d.exposureMS)*float64(time.Millisecond)/d.cfg.TimeScale + 0.5)
}

func (d *Device) exposureDone() bool {
	return d.exposing && !d.waitTrig && !time.Now().Before(d.expEnd)
}

func (d *Device) frameWidth() int32 {
	w := d.lrx - d.ulx
	if w <= 0 {
		w = int32(d.cfg.ArrayWidth - 2*d.cfg.VisibleULX)
	}
	return w
}

func (d *Device) frameHeight() int32 {
	h := d.lry - d.uly
	if h <= 0 {
		h = int32(d.cfg.ArrayHeight - 2*d.cfg.VisibleULY)
	}
	return h
}

// grabRow returns the next row of the deterministic test pattern. The
// pattern encodes the row and column indices so tests can verify both
// ordering and geometry.
func (d *Device) grabRow(arg []byte) ([]byte, byte) {
	if !d.dataReady {
		return nil, wire.FaultBadParameter
	}
	if len(arg) < 4 {
		return nil, wire.FaultBadParameter
	}
	row := wire.Int32(arg)
	if row != d.rowCursor || row >= d.frameHeight() {
		return nil, wire.FaultBadParameter
	}
	d.rowCursor++
	if d.rowCursor == d.frameHeight() {
		d.dataReady = false
	}

	width := int(d.frameWidth())
	if d.bitDepth == 0 {
		out := make([]byte, width)
		for x := range out {
			out[x] = PixelValue8(int(row), x)
		}
		return out, 0
	}
	out := make([]byte, width*2)
	for x := 0; x < width; x++ {
		v := PixelValue16(int(row), x)
		out[2*x] = byte(v >> 8)
		out[2*x+1] = byte(v)
	}
	return out, 0
}

// PixelValue16 is the 16-bit test pattern value at (row, col).
func PixelValue16(row, col int) uint16 {
	return uint16(row*257 + col)
}

// PixelValue8 is the 8-bit test pattern value at (row, col).
func PixelValue8(row, col int) byte {
	return byte(row*7 + col)
}

// ---- filter wheel ----

func (d *Device) handleFilterWheel(op wire.Op, arg []byte) ([]byte, byte) {
	switch op {
	case wire.OpSetFilterPos:
		if len(arg) < 4 {
			return nil, wire.FaultBadParameter
		}
		pos := wire.Int32(arg)
		if pos == -1 {
			d.filterPos = 0
			return nil, 0
		}
		if pos < 0 || int(pos) >= d.cfg.FilterSlots {
			return nil, wire.FaultBadParameter
		}
		d.filterPos = pos
		return nil, 0
	case wire.OpGetFilterPos:
		return wire.AppendInt32(nil, d.filterPos), 0
	case wire.OpGetFilterCount:
		return wire.AppendInt32(nil, int32(d.cfg.FilterSlots)), 0
	case wire.OpGetFilterName:
		if len(arg) < 4 {
			return nil, wire.FaultBadParameter
		}
		pos := wire.Int32(arg)
		if pos < 0 || int(pos) >= len(d.filterNames) {
			return nil, wire.FaultBadParameter
		}
		return append([]byte(d.filterNames[pos]), 0), 0
	case wire.OpSetActiveWheel:
		if len(arg) < 4 || wire.Int32(arg) < 0 {
			return nil, wire.FaultBadParameter
		}
		d.activeWheel = wire.Int32(arg)
		return nil, 0
	case wire.OpGetActiveWheel:
		return wire.AppendInt32(nil, d.activeWheel), 0
	case wire.OpHomeDevice:
		d.filterPos = 0
		return nil, 0
	}
	return nil, wire.FaultWrongDevice
}

// ---- focuser ----

func (d *Device) handleFocuser(op wire.Op, arg []byte) ([]byte, byte) {
	switch op {
	case wire.OpStepMotor, wire.OpStepMotorAsync:
		if len(arg) < 4 {
			return nil, wire.FaultBadParameter
		}
		pos := d.stepperPos + wire.Int32(arg)
		if pos < 0 {
			pos = 0
		}
		if pos > int32(d.cfg.FocuserExtent) {
			pos = int32(d.cfg.FocuserExtent)
		}
		d.stepperPos = pos
		return nil, 0
	case wire.OpGetStepperPos:
		return wire.AppendInt32(nil, d.stepperPos), 0
	case wire.OpGetStepsRemaining:
		return wire.AppendInt32(nil, 0), 0
	case wire.OpGetFocuserExtent:
		return wire.AppendInt32(nil, int32(d.cfg.FocuserExtent)), 0
	case wire.OpHomeDevice:
		d.stepperPos = 0
		return nil, 0
	}
	return nil, wire.FaultWrongDevice
}
