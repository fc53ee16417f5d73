package fli

import (
	"fmt"
	"time"

	"github.com/openastro/go-fli/internal/wire"
)

const focuserPollInterval = 100 * time.Millisecond

func focuserFor(h Handle) (*session, error) {
	return sessionFor(h, DeviceFocuser)
}

// StepMotor moves the focuser by the given number of steps, negative
// toward home, and blocks until the motor stops.
func StepMotor(h Handle, steps int) error {
	sess, err := focuserFor(h)
	if err != nil {
		return err
	}
	if err := sess.stepMotor(steps, wire.OpStepMotor); err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.waitStepsDone()
}

// StepMotorAsync starts a focuser move and returns immediately.
// Progress is observed with GetStepsRemaining.
func StepMotorAsync(h Handle, steps int) error {
	sess, err := focuserFor(h)
	if err != nil {
		return err
	}
	return sess.stepMotor(steps, wire.OpStepMotorAsync)
}

func (s *session) stepMotor(steps int, op wire.Op) error {
	if err := s.checkMutate(); err != nil {
		return err
	}
	_, err := s.exchange(op, wire.AppendInt32(nil, int32(steps)))
	return err
}

// waitStepsDone polls GetStepsRemaining until the motor stops, bounded
// by the session's motion timeout. Called with sess.mu held.
func (s *session) waitStepsDone() error {
	deadline := time.Now().Add(s.motionTimeout)
	for {
		resp, err := s.exchange(wire.OpGetStepsRemaining, nil)
		if err != nil {
			return err
		}
		if wire.Int32(resp) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: motor still stepping after %v", ErrTimeout, s.motionTimeout)
		}
		time.Sleep(focuserPollInterval)
	}
}

// GetStepperPosition returns the focuser's absolute position in steps
// from home.
func GetStepperPosition(h Handle) (int, error) {
	sess, err := focuserFor(h)
	if err != nil {
		return 0, err
	}
	resp, err := sess.exchange(wire.OpGetStepperPos, nil)
	if err != nil {
		return 0, err
	}
	return int(wire.Int32(resp)), nil
}

// GetStepsRemaining returns how many steps of the current move are
// still outstanding. Zero means the motor is stopped.
func GetStepsRemaining(h Handle) (int, error) {
	sess, err := focuserFor(h)
	if err != nil {
		return 0, err
	}
	resp, err := sess.exchange(wire.OpGetStepsRemaining, nil)
	if err != nil {
		return 0, err
	}
	return int(wire.Int32(resp)), nil
}

// GetFocuserExtent returns the maximum position of the focuser in
// steps.
func GetFocuserExtent(h Handle) (int, error) {
	sess, err := focuserFor(h)
	if err != nil {
		return 0, err
	}
	resp, err := sess.exchange(wire.OpGetFocuserExtent, nil)
	if err != nil {
		return 0, err
	}
	return int(wire.Int32(resp)), nil
}

// HomeFocuser drives the focuser to its home position, zeroing the
// step counter, and blocks until homing completes.
func HomeFocuser(h Handle) error {
	sess, err := focuserFor(h)
	if err != nil {
		return err
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, err := sess.exchange(wire.OpHomeDevice, nil); err != nil {
		return err
	}
	return sess.waitMotionDone(wire.FocuserStatusMovingIn |
		wire.FocuserStatusMovingOut | wire.FocuserStatusHoming)
}

// FocuserTemperature reads the focuser's internal temperature sensor
// in degrees Celsius.
func FocuserTemperature(h Handle) (float64, error) {
	sess, err := focuserFor(h)
	if err != nil {
		return 0, err
	}
	resp, err := sess.exchange(wire.OpReadTemperature,
		wire.AppendInt32(nil, int32(TemperatureInternal)))
	if err != nil {
		return 0, err
	}
	return wire.Float64(resp), nil
}
