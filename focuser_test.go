package fli

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/openastro/go-fli/internal/wire"
)

func openSimFocuser(t *testing.T) Handle {
	t.Helper()
	Simulate(5000)
	h, err := Open("FLI-39", simFocuserDomain)
	if err != nil {
		t.Fatalf("Open(FLI-39) failed: %v", err)
	}
	t.Cleanup(func() { Close(h) })
	return h
}

func TestFocuserMovement(t *testing.T) {
	h := openSimFocuser(t)

	if err := HomeFocuser(h); err != nil {
		t.Fatalf("HomeFocuser failed: %v", err)
	}
	if pos, _ := GetStepperPosition(h); pos != 0 {
		t.Errorf("position after home = %d, want 0", pos)
	}

	if err := StepMotor(h, 150); err != nil {
		t.Fatalf("StepMotor(150) failed: %v", err)
	}
	if pos, _ := GetStepperPosition(h); pos != 150 {
		t.Errorf("position = %d, want 150", pos)
	}

	if err := StepMotorAsync(h, -50); err != nil {
		t.Fatalf("StepMotorAsync(-50) failed: %v", err)
	}
	remaining, err := GetStepsRemaining(h)
	if err != nil {
		t.Fatalf("GetStepsRemaining failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("GetStepsRemaining = %d, want 0 after settle", remaining)
	}
	if pos, _ := GetStepperPosition(h); pos != 100 {
		t.Errorf("position = %d, want 100", pos)
	}
}

func TestFocuserExtent(t *testing.T) {
	h := openSimFocuser(t)

	extent, err := GetFocuserExtent(h)
	if err != nil {
		t.Fatalf("GetFocuserExtent failed: %v", err)
	}
	if extent <= 0 {
		t.Fatalf("GetFocuserExtent = %d, want positive", extent)
	}

	// Travel clamps at the mechanical limits.
	if err := HomeFocuser(h); err != nil {
		t.Fatal(err)
	}
	if err := StepMotor(h, extent*2); err != nil {
		t.Fatalf("StepMotor past extent failed: %v", err)
	}
	if pos, _ := GetStepperPosition(h); pos != extent {
		t.Errorf("position = %d, want clamp at %d", pos, extent)
	}
	if err := StepMotor(h, -extent*3); err != nil {
		t.Fatal(err)
	}
	if pos, _ := GetStepperPosition(h); pos != 0 {
		t.Errorf("position = %d, want clamp at 0", pos)
	}
}

func TestFocuserTemperature(t *testing.T) {
	h := openSimFocuser(t)

	temp, err := FocuserTemperature(h)
	if err != nil {
		t.Fatalf("FocuserTemperature failed: %v", err)
	}
	if math.IsNaN(temp) || temp < -60 || temp > 80 {
		t.Errorf("FocuserTemperature = %v, want a plausible ambient value", temp)
	}
}

func TestStepWaitTimeout(t *testing.T) {
	// A motor that never finishes its move must time out rather than
	// block the caller forever.
	tr := newScriptTransport(func(cmd wire.Frame) [][]byte {
		if cmd.Op == wire.OpGetStepsRemaining {
			return [][]byte{ack(cmd, wire.AppendInt32(nil, 5))}
		}
		return [][]byte{ack(cmd, nil)}
	})
	sess := &session{
		info:          DeviceInfo{Domain: DomainUSB | DeviceFocuser},
		phys:          &physDevice{tr: tr, cod: testCodec(tr), lockOwner: InvalidHandle},
		motionTimeout: 150 * time.Millisecond,
	}

	sess.mu.Lock()
	err := sess.waitStepsDone()
	sess.mu.Unlock()
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("waitStepsDone on stuck motor = %v, want ErrTimeout", err)
	}
}
