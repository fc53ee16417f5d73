package fli

import "time"

// Config holds per-session tuning applied at Open time.
type Config struct {
	Debug          *Debug
	CommandTimeout time.Duration
	RowTimeout     time.Duration
	MotionTimeout  time.Duration
	Retries        int
}

// Option is a functional option for configuring a session
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Debug:          currentDebug(),
		CommandTimeout: defaultCommandTimeout,
		RowTimeout:     defaultRowTimeout,
		MotionTimeout:  defaultMotionTimeout,
		Retries:        defaultRetries,
	}
}

// WithDebug threads an explicit diagnostic sink into the session's
// transport and codec.
func WithDebug(dbg *Debug) Option {
	return func(c *Config) error {
		c.Debug = dbg
		return nil
	}
}

// WithCommandTimeout bounds ordinary command round-trips.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return ErrInvalidArgument
		}
		c.CommandTimeout = timeout
		return nil
	}
}

// WithRowTimeout bounds readout commands, which move full pixel rows
// and need a larger budget than acknowledgement-sized exchanges.
func WithRowTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return ErrInvalidArgument
		}
		c.RowTimeout = timeout
		return nil
	}
}

// WithMotionTimeout bounds blocking mechanical waits: filter wheel
// moves, homing, and focuser steps. A device that keeps reporting
// motion past this deadline surfaces ErrTimeout instead of blocking
// forever.
func WithMotionTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return ErrInvalidArgument
		}
		c.MotionTimeout = timeout
		return nil
	}
}

// WithRetries sets how many times a malformed or timed-out exchange is
// reattempted before surfacing a transport error.
func WithRetries(n int) Option {
	return func(c *Config) error {
		if n < 0 || n > 10 {
			return ErrInvalidArgument
		}
		c.Retries = n
		return nil
	}
}
