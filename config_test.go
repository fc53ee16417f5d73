package fli

import (
	"errors"
	"testing"
	"time"
)

func TestWithCommandTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{"100ms (valid)", 100 * time.Millisecond, false},
		{"2s (default)", 2 * time.Second, false},
		{"1h (large but valid)", time.Hour, false},
		{"zero", 0, true},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			err := WithCommandTimeout(tt.timeout)(&config)
			if (err != nil) != tt.wantErr {
				t.Errorf("WithCommandTimeout(%v) error = %v, wantErr %v", tt.timeout, err, tt.wantErr)
			}
			if err == nil && config.CommandTimeout != tt.timeout {
				t.Errorf("CommandTimeout = %v, want %v", config.CommandTimeout, tt.timeout)
			}
		})
	}
}

func TestWithRowTimeout(t *testing.T) {
	config := DefaultConfig()
	if err := WithRowTimeout(30 * time.Second)(&config); err != nil {
		t.Errorf("WithRowTimeout(30s) error = %v", err)
	}
	if config.RowTimeout != 30*time.Second {
		t.Errorf("RowTimeout = %v, want 30s", config.RowTimeout)
	}
	if err := WithRowTimeout(0)(&config); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("WithRowTimeout(0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestWithMotionTimeout(t *testing.T) {
	config := DefaultConfig()
	if err := WithMotionTimeout(5 * time.Second)(&config); err != nil {
		t.Errorf("WithMotionTimeout(5s) error = %v", err)
	}
	if config.MotionTimeout != 5*time.Second {
		t.Errorf("MotionTimeout = %v, want 5s", config.MotionTimeout)
	}
	if err := WithMotionTimeout(0)(&config); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("WithMotionTimeout(0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestWithRetries(t *testing.T) {
	tests := []struct {
		name    string
		retries int
		wantErr bool
	}{
		{"0 (no retries)", 0, false},
		{"3 (default)", 3, false},
		{"10 (max)", 10, false},
		{"11 (exceeds max)", 11, true},
		{"-1 (negative)", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			err := WithRetries(tt.retries)(&config)
			if (err != nil) != tt.wantErr {
				t.Errorf("WithRetries(%d) error = %v, wantErr %v", tt.retries, err, tt.wantErr)
			}
			if err == nil && config.Retries != tt.retries {
				t.Errorf("Retries = %d, want %d", config.Retries, tt.retries)
			}
		})
	}
}

func TestWithDebug(t *testing.T) {
	dbg := NewDebug(DebugAll, nil)
	config := DefaultConfig()
	if err := WithDebug(dbg)(&config); err != nil {
		t.Fatalf("WithDebug error = %v", err)
	}
	if config.Debug != dbg {
		t.Error("Debug sink not applied to config")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.CommandTimeout != defaultCommandTimeout {
		t.Errorf("CommandTimeout = %v, want %v", config.CommandTimeout, defaultCommandTimeout)
	}
	if config.RowTimeout != defaultRowTimeout {
		t.Errorf("RowTimeout = %v, want %v", config.RowTimeout, defaultRowTimeout)
	}
	if config.MotionTimeout != defaultMotionTimeout {
		t.Errorf("MotionTimeout = %v, want %v", config.MotionTimeout, defaultMotionTimeout)
	}
	if config.Retries != defaultRetries {
		t.Errorf("Retries = %d, want %d", config.Retries, defaultRetries)
	}
}
