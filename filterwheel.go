package fli

import (
	"fmt"
	"time"

	"github.com/openastro/go-fli/internal/wire"
)

// FilterPositionUnknown is reported by GetFilterPos after a power
// cycle, before the wheel has been homed or moved.
const FilterPositionUnknown = wire.FilterPositionUnknown

const filterPollInterval = 50 * time.Millisecond

func filterWheelFor(h Handle) (*session, error) {
	return sessionFor(h, DeviceFilterWheel)
}

// SetFilterPos moves the wheel to the given slot and blocks until the
// move completes. Position -1 homes the wheel first and leaves it at
// slot 0, matching the instrument's power-on homing behavior.
func SetFilterPos(h Handle, pos int) error {
	sess, err := filterWheelFor(h)
	if err != nil {
		return err
	}
	if pos < -1 {
		return fmt.Errorf("%w: filter position %d", ErrInvalidArgument, pos)
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, err := sess.exchange(wire.OpSetFilterPos, wire.AppendInt32(nil, int32(pos))); err != nil {
		return err
	}
	return sess.waitMotionDone(wire.FilterStatusMovingCCW | wire.FilterStatusMovingCW | wire.FilterStatusHoming)
}

// waitMotionDone polls the device status word until none of the given
// motion bits remain set, bounded by the session's motion timeout.
// Called with sess.mu held.
func (s *session) waitMotionDone(motionBits int64) error {
	deadline := time.Now().Add(s.motionTimeout)
	for {
		resp, err := s.exchange(wire.OpGetDeviceStatus, nil)
		if err != nil {
			return err
		}
		status := int64(uint32(wire.Int32(resp)))
		if status&motionBits == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: motion still in progress after %v", ErrTimeout, s.motionTimeout)
		}
		time.Sleep(filterPollInterval)
	}
}

// GetFilterPos returns the wheel's current slot, or
// FilterPositionUnknown if the wheel has not moved since power-on.
func GetFilterPos(h Handle) (int, error) {
	sess, err := filterWheelFor(h)
	if err != nil {
		return 0, err
	}
	resp, err := sess.exchange(wire.OpGetFilterPos, nil)
	if err != nil {
		return 0, err
	}
	return int(wire.Int32(resp)), nil
}

// GetFilterCount returns the number of slots in the active wheel.
func GetFilterCount(h Handle) (int, error) {
	sess, err := filterWheelFor(h)
	if err != nil {
		return 0, err
	}
	resp, err := sess.exchange(wire.OpGetFilterCount, nil)
	if err != nil {
		return 0, err
	}
	return int(wire.Int32(resp)), nil
}

// GetFilterName returns the device-stored name of the given slot.
func GetFilterName(h Handle, pos int) (string, error) {
	sess, err := filterWheelFor(h)
	if err != nil {
		return "", err
	}
	if pos < 0 {
		return "", fmt.Errorf("%w: filter position %d", ErrInvalidArgument, pos)
	}
	resp, err := sess.exchange(wire.OpGetFilterName, wire.AppendInt32(nil, int32(pos)))
	if err != nil {
		return "", err
	}
	return cString(resp), nil
}

// SetActiveWheel selects which wheel a multi-wheel unit addresses.
func SetActiveWheel(h Handle, wheel int) error {
	sess, err := filterWheelFor(h)
	if err != nil {
		return err
	}
	if wheel < 0 {
		return fmt.Errorf("%w: wheel %d", ErrInvalidArgument, wheel)
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}
	_, err = sess.exchange(wire.OpSetActiveWheel, wire.AppendInt32(nil, int32(wheel)))
	return err
}

// GetActiveWheel returns the currently addressed wheel of a
// multi-wheel unit.
func GetActiveWheel(h Handle) (int, error) {
	sess, err := filterWheelFor(h)
	if err != nil {
		return 0, err
	}
	resp, err := sess.exchange(wire.OpGetActiveWheel, nil)
	if err != nil {
		return 0, err
	}
	return int(wire.Int32(resp)), nil
}

// HomeDevice drives the mechanism to its home position and blocks
// until homing completes. Works on filter wheels and focusers.
func HomeDevice(h Handle) error {
	sess, err := sessionFor(h, DeviceNone)
	if err != nil {
		return err
	}
	switch sess.info.Domain.DeviceType() {
	case DeviceFilterWheel, DeviceFocuser:
	default:
		return fmt.Errorf("%w: home on %v", ErrWrongDeviceType, sess.info.Domain)
	}
	if err := sess.checkMutate(); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, err := sess.exchange(wire.OpHomeDevice, nil); err != nil {
		return err
	}
	return sess.waitMotionDone(wire.FilterStatusHoming |
		wire.FocuserStatusMovingIn | wire.FocuserStatusMovingOut)
}

// cString trims a NUL-terminated payload to its string content.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
