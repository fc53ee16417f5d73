package fli

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/openastro/go-fli/internal/simdev"
)

// waitExposure polls until the device reports the frame ready,
// failing the test if it never does.
func waitExposure(t *testing.T, h Handle) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		remaining, err := GetExposureStatus(h)
		if err != nil {
			t.Fatalf("GetExposureStatus failed: %v", err)
		}
		if remaining == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("exposure never completed, %dms still remaining", remaining)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCaptureScenario(t *testing.T) {
	h := openSimCamera(t)

	if err := SetExposureTime(h, 10000); err != nil {
		t.Fatalf("SetExposureTime failed: %v", err)
	}
	if err := SetFrameType(h, FrameTypeDark); err != nil {
		t.Fatalf("SetFrameType failed: %v", err)
	}

	ulx, uly, _, _, err := GetVisibleArea(h)
	if err != nil {
		t.Fatalf("GetVisibleArea failed: %v", err)
	}
	const w, rows = 64, 32
	if err := SetImageArea(h, ulx, uly, ulx+w, uly+rows); err != nil {
		t.Fatalf("SetImageArea failed: %v", err)
	}
	if err := SetHBin(h, 1); err != nil {
		t.Fatalf("SetHBin failed: %v", err)
	}
	if err := SetVBin(h, 1); err != nil {
		t.Fatalf("SetVBin failed: %v", err)
	}

	if err := ExposeFrame(h); err != nil {
		t.Fatalf("ExposeFrame failed: %v", err)
	}
	if state, _ := GetExposureState(h); state != StateExposing {
		t.Errorf("state after expose = %v, want Exposing", state)
	}

	waitExposure(t, h)
	if state, _ := GetExposureState(h); state != StateAwaitingReadout {
		t.Errorf("state after completion = %v, want AwaitingReadout", state)
	}

	if err := EndExposure(h); err != nil {
		t.Fatalf("EndExposure failed: %v", err)
	}

	frame, err := GrabFrame(h)
	if err != nil {
		t.Fatalf("GrabFrame failed: %v", err)
	}
	if len(frame) != w*rows*2 {
		t.Fatalf("frame size = %d bytes, want %d", len(frame), w*rows*2)
	}

	// Spot-check the deterministic pattern at both corners.
	first := binary.BigEndian.Uint16(frame[:2])
	if first != simdev.PixelValue16(0, 0) {
		t.Errorf("pixel (0,0) = 0x%04x, want 0x%04x", first, simdev.PixelValue16(0, 0))
	}
	last := binary.BigEndian.Uint16(frame[len(frame)-2:])
	if want := simdev.PixelValue16(rows-1, w-1); last != want {
		t.Errorf("pixel (%d,%d) = 0x%04x, want 0x%04x", rows-1, w-1, last, want)
	}

	if state, _ := GetExposureState(h); state != StateIdle {
		t.Errorf("state after full readout = %v, want Idle", state)
	}
}

func TestGrabRowOrder(t *testing.T) {
	h := openSimCamera(t)

	if err := SetExposureTime(h, 10); err != nil {
		t.Fatalf("SetExposureTime failed: %v", err)
	}
	if err := SetImageArea(h, 100, 100, 116, 104); err != nil {
		t.Fatalf("SetImageArea failed: %v", err)
	}
	if err := ExposeFrame(h); err != nil {
		t.Fatalf("ExposeFrame failed: %v", err)
	}
	waitExposure(t, h)
	if err := EndExposure(h); err != nil {
		t.Fatalf("EndExposure failed: %v", err)
	}

	row := make([]byte, 16*2)
	for r := 0; r < 4; r++ {
		n, err := GrabRow(h, row)
		if err != nil {
			t.Fatalf("GrabRow %d failed: %v", r, err)
		}
		if n != len(row) {
			t.Fatalf("GrabRow %d = %d bytes, want %d", r, n, len(row))
		}
		if got := binary.BigEndian.Uint16(row[:2]); got != simdev.PixelValue16(r, 0) {
			t.Errorf("row %d starts 0x%04x, want 0x%04x", r, got, simdev.PixelValue16(r, 0))
		}
	}

	// The frame is drained; the session is Idle and the extra grab is
	// an over-read, distinct from a plain sequencing error.
	if state, _ := GetExposureState(h); state != StateIdle {
		t.Errorf("state after drain = %v, want Idle", state)
	}
	if _, err := GrabRow(h, row); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("GrabRow past end = %v, want ErrInvalidArgument", err)
	}

	// A fresh exposure resets the row cursor and reads out normally.
	if err := ExposeFrame(h); err != nil {
		t.Fatalf("ExposeFrame after drain failed: %v", err)
	}
	waitExposure(t, h)
	if err := EndExposure(h); err != nil {
		t.Fatalf("EndExposure after drain failed: %v", err)
	}
	if _, err := GrabRow(h, row); err != nil {
		t.Errorf("GrabRow after re-expose failed: %v", err)
	}
	for r := 1; r < 4; r++ {
		if _, err := GrabRow(h, row); err != nil {
			t.Fatalf("GrabRow %d after re-expose failed: %v", r, err)
		}
	}
}

func TestGrabRowShortBuffer(t *testing.T) {
	h := openSimCamera(t)

	if err := SetExposureTime(h, 10); err != nil {
		t.Fatal(err)
	}
	if err := SetImageArea(h, 0, 0, 16, 2); err != nil {
		t.Fatal(err)
	}
	if err := ExposeFrame(h); err != nil {
		t.Fatal(err)
	}
	waitExposure(t, h)
	if err := EndExposure(h); err != nil {
		t.Fatal(err)
	}

	if _, err := GrabRow(h, make([]byte, 8)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("GrabRow with short buffer = %v, want ErrInvalidArgument", err)
	}
}

func TestExposureStateMachine(t *testing.T) {
	h := openSimCamera(t)

	if err := SetExposureTime(h, 10000); err != nil {
		t.Fatal(err)
	}
	if err := SetImageArea(h, 0, 0, 32, 8); err != nil {
		t.Fatal(err)
	}

	// Idle: readout operations are out of order.
	if err := EndExposure(h); !errors.Is(err, ErrInvalidSequence) {
		t.Errorf("EndExposure while idle = %v, want ErrInvalidSequence", err)
	}
	if _, err := GrabRow(h, make([]byte, 64)); !errors.Is(err, ErrInvalidSequence) {
		t.Errorf("GrabRow while idle = %v, want ErrInvalidSequence", err)
	}
	if err := TriggerExposure(h); !errors.Is(err, ErrInvalidSequence) {
		t.Errorf("TriggerExposure while idle = %v, want ErrInvalidSequence", err)
	}

	if err := ExposeFrame(h); err != nil {
		t.Fatal(err)
	}

	// Exposing: configuration and a second expose are rejected.
	if err := ExposeFrame(h); !errors.Is(err, ErrInvalidSequence) {
		t.Errorf("ExposeFrame while exposing = %v, want ErrInvalidSequence", err)
	}
	if err := SetExposureTime(h, 50); !errors.Is(err, ErrInvalidSequence) {
		t.Errorf("SetExposureTime while exposing = %v, want ErrInvalidSequence", err)
	}
	if err := SetHBin(h, 2); !errors.Is(err, ErrInvalidSequence) {
		t.Errorf("SetHBin while exposing = %v, want ErrInvalidSequence", err)
	}

	if err := CancelExposure(h); err != nil {
		t.Fatalf("CancelExposure failed: %v", err)
	}
	if state, _ := GetExposureState(h); state != StateIdle {
		t.Errorf("state after cancel = %v, want Idle", state)
	}

	// Cancelling an idle session stays a no-op.
	if err := CancelExposure(h); err != nil {
		t.Errorf("CancelExposure while idle = %v, want nil", err)
	}

	// The session is reusable after a cancel.
	if err := ExposeFrame(h); err != nil {
		t.Errorf("ExposeFrame after cancel failed: %v", err)
	}
	CancelExposure(h)
}

func TestConfigValidation(t *testing.T) {
	h := openSimCamera(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"negative exposure", func() error { return SetExposureTime(h, -1) }},
		{"hbin zero", func() error { return SetHBin(h, 0) }},
		{"hbin too large", func() error { return SetHBin(h, 17) }},
		{"vbin zero", func() error { return SetVBin(h, 0) }},
		{"empty image area", func() error { return SetImageArea(h, 10, 10, 10, 20) }},
		{"inverted image area", func() error { return SetImageArea(h, 50, 50, 40, 60) }},
		{"bad frame type", func() error { return SetFrameType(h, FrameType(9)) }},
		{"bad bit depth", func() error { return SetBitDepth(h, BitDepth(5)) }},
		{"negative flushes", func() error { return SetNFlushes(h, -1) }},
		{"setpoint too cold", func() error { return SetTemperature(h, -80) }},
		{"setpoint too hot", func() error { return SetTemperature(h, 60) }},
		{"bad shutter mode", func() error { return ControlShutter(h, Shutter(0x40)) }},
		{"flush zero rows", func() error { return FlushRow(h, 0, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestConfigCommit(t *testing.T) {
	h := openSimCamera(t)

	if err := SetExposureTime(h, 2500); err != nil {
		t.Fatal(err)
	}
	if err := SetHBin(h, 2); err != nil {
		t.Fatal(err)
	}
	if err := SetBitDepth(h, Mode8Bit); err != nil {
		t.Fatal(err)
	}

	cfg, err := GetCameraConfig(h)
	if err != nil {
		t.Fatalf("GetCameraConfig failed: %v", err)
	}
	if cfg.ExposureMS != 2500 || cfg.HBin != 2 || cfg.BitDepth != Mode8Bit {
		t.Errorf("config = %+v, want exposure=2500 hbin=2 8-bit", cfg)
	}
}

func TestGeometry(t *testing.T) {
	h := openSimCamera(t)

	aulx, auly, alrx, alry, err := GetArrayArea(h)
	if err != nil {
		t.Fatalf("GetArrayArea failed: %v", err)
	}
	vulx, vuly, vlrx, vlry, err := GetVisibleArea(h)
	if err != nil {
		t.Fatalf("GetVisibleArea failed: %v", err)
	}
	if vulx < aulx || vuly < auly || vlrx > alrx || vlry > alry {
		t.Errorf("visible area (%d,%d)-(%d,%d) outside array (%d,%d)-(%d,%d)",
			vulx, vuly, vlrx, vlry, aulx, auly, alrx, alry)
	}

	width, _, hbin, height, _, vbin, err := GetReadoutDimensions(h)
	if err != nil {
		t.Fatalf("GetReadoutDimensions failed: %v", err)
	}
	if width <= 0 || height <= 0 || hbin < 1 || vbin < 1 {
		t.Errorf("readout dims = %dx%d bin %dx%d", width, height, hbin, vbin)
	}

	px, py, err := GetPixelSize(h)
	if err != nil {
		t.Fatalf("GetPixelSize failed: %v", err)
	}
	if px <= 0 || py <= 0 {
		t.Errorf("pixel size = %v x %v microns", px, py)
	}
}

func TestThermal(t *testing.T) {
	h := openSimCamera(t)

	if err := SetTemperature(h, -20); err != nil {
		t.Fatalf("SetTemperature failed: %v", err)
	}
	temp, err := GetTemperature(h)
	if err != nil {
		t.Fatalf("GetTemperature failed: %v", err)
	}
	if temp != -20 {
		t.Errorf("GetTemperature = %v, want -20", temp)
	}

	power, err := GetCoolerPower(h)
	if err != nil {
		t.Fatalf("GetCoolerPower failed: %v", err)
	}
	if power <= 0 || power > 100 {
		t.Errorf("GetCoolerPower = %v, want within (0,100]", power)
	}

	if _, err := ReadTemperature(h, TemperatureExternal); err != nil {
		t.Errorf("ReadTemperature failed: %v", err)
	}
}

func TestAuxiliaryControls(t *testing.T) {
	h := openSimCamera(t)

	if err := ControlBackgroundFlush(h, BGFlushStart); err != nil {
		t.Errorf("ControlBackgroundFlush(start) failed: %v", err)
	}
	if err := ControlBackgroundFlush(h, BGFlushStop); err != nil {
		t.Errorf("ControlBackgroundFlush(stop) failed: %v", err)
	}
	if err := ControlShutter(h, ShutterOpen); err != nil {
		t.Errorf("ControlShutter(open) failed: %v", err)
	}
	if err := ControlShutter(h, ShutterClose); err != nil {
		t.Errorf("ControlShutter(close) failed: %v", err)
	}
	if err := SetFanSpeed(h, FanSpeedOn); err != nil {
		t.Errorf("SetFanSpeed(on) failed: %v", err)
	}
	if err := SetNFlushes(h, 2); err != nil {
		t.Errorf("SetNFlushes failed: %v", err)
	}
	if err := FlushRow(h, 4, 2); err != nil {
		t.Errorf("FlushRow failed: %v", err)
	}
}

func TestExternalTrigger(t *testing.T) {
	h := openSimCamera(t)

	if err := SetExposureTime(h, 10000); err != nil {
		t.Fatal(err)
	}
	if err := SetImageArea(h, 0, 0, 16, 4); err != nil {
		t.Fatal(err)
	}
	if err := ControlShutter(h, ShutterExternalTrigger); err != nil {
		t.Fatalf("ControlShutter(external trigger) failed: %v", err)
	}
	if err := ExposeFrame(h); err != nil {
		t.Fatalf("ExposeFrame failed: %v", err)
	}

	// Armed but untriggered: the countdown has not started, so the
	// full exposure is still outstanding.
	time.Sleep(10 * time.Millisecond)
	remaining, err := GetExposureStatus(h)
	if err != nil {
		t.Fatalf("GetExposureStatus failed: %v", err)
	}
	if remaining == 0 {
		t.Fatal("armed exposure completed without a trigger")
	}
	if state, _ := GetExposureState(h); state != StateExposing {
		t.Fatalf("state while armed = %v, want Exposing", state)
	}

	// Firing the trigger releases the exposure; it then completes and
	// reads out normally.
	if err := TriggerExposure(h); err != nil {
		t.Fatalf("TriggerExposure failed: %v", err)
	}
	waitExposure(t, h)
	if err := EndExposure(h); err != nil {
		t.Fatalf("EndExposure failed: %v", err)
	}
	frame, err := GrabFrame(h)
	if err != nil {
		t.Fatalf("GrabFrame failed: %v", err)
	}
	if len(frame) != 16*4*2 {
		t.Errorf("frame = %d bytes, want %d", len(frame), 16*4*2)
	}
}
