package fli

import (
	"fmt"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, StatusOK},
		{"invalid handle", ErrInvalidHandle, StatusInvalid},
		{"invalid argument", ErrInvalidArgument, StatusInvalid},
		{"wrong device type", ErrWrongDeviceType, StatusInvalid},
		{"invalid sequence", ErrInvalidSequence, StatusInvalid},
		{"busy", ErrDeviceBusy, StatusBusy},
		{"not found", ErrDeviceNotFound, StatusNoDevice},
		{"not implemented", ErrNotImplemented, StatusNotImplemented},
		{"rejected", ErrDeviceRejected, StatusProtocol},
		{"timeout", ErrTimeout, StatusTimedOut},
		{"closed", ErrClosed, StatusPipe},
		{"transport", ErrTransport, StatusIO},
		{"unrecognized", fmt.Errorf("something else"), StatusIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusCodeWrapped(t *testing.T) {
	// Wrapping must not change the mapped code.
	err := fmt.Errorf("open camera: %w", ErrDeviceBusy)
	if got := StatusCode(err); got != StatusBusy {
		t.Errorf("StatusCode(wrapped busy) = %d, want %d", got, StatusBusy)
	}
}
