package fli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// DebugLevel selects which categories of diagnostic output a Debug
// emits. Levels combine with bitwise OR.
type DebugLevel int

const (
	DebugNone DebugLevel = 0x00
	DebugInfo DebugLevel = 0x01
	DebugWarn DebugLevel = 0x02
	DebugFail DebugLevel = 0x04
	DebugIO   DebugLevel = 0x08

	DebugAll = DebugInfo | DebugWarn | DebugFail
)

// Debug is an explicitly constructed diagnostic sink threaded into
// transports and the protocol codec. A nil *Debug is valid and emits
// nothing, so callers never need to guard their logging calls.
type Debug struct {
	mu    sync.Mutex
	level DebugLevel
	out   io.Writer
}

// NewDebug returns a Debug writing messages at the given levels to out.
// A nil out defaults to stderr.
func NewDebug(level DebugLevel, out io.Writer) *Debug {
	if out == nil {
		out = os.Stderr
	}
	return &Debug{level: level, out: out}
}

// SetLevel changes the enabled level mask.
func (d *Debug) SetLevel(level DebugLevel) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.level = level
	d.mu.Unlock()
}

func (d *Debug) enabled(level DebugLevel) bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level&level != 0
}

func (d *Debug) logf(tag string, format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(d.out, "%s %s %s\n", ts, tag, fmt.Sprintf(format, args...))
}

// Infof logs an informational message.
func (d *Debug) Infof(format string, args ...any) {
	if d.enabled(DebugInfo) {
		d.logf("INFO", format, args...)
	}
}

// Warnf logs a warning.
func (d *Debug) Warnf(format string, args ...any) {
	if d.enabled(DebugWarn) {
		d.logf("WARN", format, args...)
	}
}

// Failf logs a failure.
func (d *Debug) Failf(format string, args ...any) {
	if d.enabled(DebugFail) {
		d.logf("FAIL", format, args...)
	}
}

// IOf logs raw transport traffic. Enabled separately from DebugAll
// because frame dumps are voluminous.
func (d *Debug) IOf(format string, args ...any) {
	if d.enabled(DebugIO) {
		d.logf("IO  ", format, args...)
	}
}

// defaultDebug is handed to sessions opened without an explicit Debug.
// SetDebugLevel mirrors the original library's process-wide debug
// switch while keeping the object explicit underneath.
var (
	defaultDebugMu sync.Mutex
	defaultDebug   *Debug
)

// SetDebugLevel configures the Debug used by sessions opened without
// WithDebug. Passing DebugNone disables it.
func SetDebugLevel(level DebugLevel, out io.Writer) {
	defaultDebugMu.Lock()
	defer defaultDebugMu.Unlock()
	if level == DebugNone {
		defaultDebug = nil
		return
	}
	defaultDebug = NewDebug(level, out)
}

func currentDebug() *Debug {
	defaultDebugMu.Lock()
	defer defaultDebugMu.Unlock()
	return defaultDebug
}
