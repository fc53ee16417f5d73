package fli

import "errors"

// Predefined error types for robust error handling
var (
	ErrInvalidHandle   = errors.New("invalid or closed device handle")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrDeviceBusy      = errors.New("device locked by another session")
	ErrInvalidSequence = errors.New("operation not permitted in current exposure state")
	ErrTransport       = errors.New("transport failure")
	ErrTimeout         = errors.New("command timed out")
	ErrDeviceRejected  = errors.New("device rejected command")
	ErrNotImplemented  = errors.New("operation not supported by this device")
	ErrWrongDeviceType = errors.New("operation not valid for this device type")
	ErrListClosed      = errors.New("device list closed")

	// Transport construction errors
	ErrInvalidAddress = errors.New("invalid transport address")
	ErrClosed         = errors.New("transport is closed")

	// USB-related errors
	ErrUSBInfoNotAvailable  = errors.New("USB device information not available")
	ErrUSBResetNotAvailable = errors.New("usbreset utility not available")
)

// Status codes returned by StatusCode, following the original
// library's negative-errno convention at the boundary.
const (
	StatusOK             = 0
	StatusIO             = -5  // transport failure
	StatusBusy           = -16 // device lock held elsewhere
	StatusNoDevice       = -19 // no such device
	StatusInvalid        = -22 // bad handle, argument, or call sequence
	StatusPipe           = -32 // connection lost mid-command
	StatusNotImplemented = -38 // unsupported operation
	StatusProtocol       = -71 // device-reported fault
	StatusTimedOut       = -110
)

// StatusCode maps err to the signed status-code convention callers of
// the original C API expect: zero for success, a negative value per
// error kind. Unrecognized errors map to StatusIO.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidHandle),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrWrongDeviceType),
		errors.Is(err, ErrInvalidSequence):
		return StatusInvalid
	case errors.Is(err, ErrDeviceBusy):
		return StatusBusy
	case errors.Is(err, ErrDeviceNotFound):
		return StatusNoDevice
	case errors.Is(err, ErrNotImplemented):
		return StatusNotImplemented
	case errors.Is(err, ErrDeviceRejected):
		return StatusProtocol
	case errors.Is(err, ErrTimeout):
		return StatusTimedOut
	case errors.Is(err, ErrClosed):
		return StatusPipe
	default:
		return StatusIO
	}
}
