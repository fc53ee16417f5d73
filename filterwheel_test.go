package fli

import (
	"errors"
	"testing"
	"time"

	"github.com/openastro/go-fli/internal/wire"
)

func openSimWheel(t *testing.T) Handle {
	t.Helper()
	Simulate(5000)
	h, err := Open("FLI-21", simWheelDomain)
	if err != nil {
		t.Fatalf("Open(FLI-21) failed: %v", err)
	}
	t.Cleanup(func() { Close(h) })
	return h
}

func TestFilterWheel(t *testing.T) {
	h := openSimWheel(t)

	// Position is unknown until the wheel first moves.
	pos, err := GetFilterPos(h)
	if err != nil {
		t.Fatalf("GetFilterPos failed: %v", err)
	}
	if pos != FilterPositionUnknown {
		t.Errorf("initial position = %d, want FilterPositionUnknown", pos)
	}

	count, err := GetFilterCount(h)
	if err != nil {
		t.Fatalf("GetFilterCount failed: %v", err)
	}
	if count != 7 {
		t.Errorf("GetFilterCount = %d, want 7", count)
	}

	if err := SetFilterPos(h, 3); err != nil {
		t.Fatalf("SetFilterPos(3) failed: %v", err)
	}
	if pos, _ := GetFilterPos(h); pos != 3 {
		t.Errorf("position after move = %d, want 3", pos)
	}

	// -1 homes the wheel.
	if err := SetFilterPos(h, -1); err != nil {
		t.Fatalf("SetFilterPos(-1) failed: %v", err)
	}
	if pos, _ := GetFilterPos(h); pos != 0 {
		t.Errorf("position after home = %d, want 0", pos)
	}
}

func TestFilterWheelBounds(t *testing.T) {
	h := openSimWheel(t)

	if err := SetFilterPos(h, -2); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetFilterPos(-2) = %v, want ErrInvalidArgument", err)
	}
	// Past the last slot: rejected by the device.
	if err := SetFilterPos(h, 99); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetFilterPos(99) = %v, want ErrInvalidArgument", err)
	}
}

func TestFilterNames(t *testing.T) {
	h := openSimWheel(t)

	name, err := GetFilterName(h, 1)
	if err != nil {
		t.Fatalf("GetFilterName failed: %v", err)
	}
	if name == "" {
		t.Error("GetFilterName returned an empty name")
	}
	if _, err := GetFilterName(h, -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("GetFilterName(-1) = %v, want ErrInvalidArgument", err)
	}
}

func TestActiveWheel(t *testing.T) {
	h := openSimWheel(t)

	if err := SetActiveWheel(h, 1); err != nil {
		t.Fatalf("SetActiveWheel failed: %v", err)
	}
	wheel, err := GetActiveWheel(h)
	if err != nil {
		t.Fatalf("GetActiveWheel failed: %v", err)
	}
	if wheel != 1 {
		t.Errorf("GetActiveWheel = %d, want 1", wheel)
	}
}

func TestHomeFilterWheel(t *testing.T) {
	h := openSimWheel(t)

	if err := SetFilterPos(h, 4); err != nil {
		t.Fatal(err)
	}
	if err := HomeDevice(h); err != nil {
		t.Fatalf("HomeDevice failed: %v", err)
	}
	if pos, _ := GetFilterPos(h); pos != 0 {
		t.Errorf("position after HomeDevice = %d, want 0", pos)
	}
}

func TestHomeWrongDevice(t *testing.T) {
	h := openSimCamera(t)

	if err := HomeDevice(h); !errors.Is(err, ErrWrongDeviceType) {
		t.Errorf("HomeDevice on camera = %v, want ErrWrongDeviceType", err)
	}
}

func TestMotionWaitTimeout(t *testing.T) {
	// A wheel that never reports its motion bits clear must surface a
	// timeout rather than block the caller forever.
	tr := newScriptTransport(func(cmd wire.Frame) [][]byte {
		if cmd.Op == wire.OpGetDeviceStatus {
			return [][]byte{ack(cmd, wire.AppendInt32(nil, int32(wire.FilterStatusMovingCW)))}
		}
		return [][]byte{ack(cmd, nil)}
	})
	sess := &session{
		info:          DeviceInfo{Domain: DomainUSB | DeviceFilterWheel},
		phys:          &physDevice{tr: tr, cod: testCodec(tr), lockOwner: InvalidHandle},
		motionTimeout: 120 * time.Millisecond,
	}

	sess.mu.Lock()
	err := sess.waitMotionDone(wire.FilterStatusMovingCW)
	sess.mu.Unlock()
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("waitMotionDone on stuck wheel = %v, want ErrTimeout", err)
	}
}
