package fli

import (
	"bytes"
	"strings"
	"testing"
)

func TestDebugLevelMask(t *testing.T) {
	var buf bytes.Buffer
	dbg := NewDebug(DebugInfo|DebugFail, &buf)

	dbg.Infof("info %d", 1)
	dbg.Warnf("warn %d", 2)
	dbg.Failf("fail %d", 3)
	dbg.IOf("io %d", 4)

	out := buf.String()
	if !strings.Contains(out, "info 1") {
		t.Error("info message suppressed at enabled level")
	}
	if strings.Contains(out, "warn 2") {
		t.Error("warn message emitted at disabled level")
	}
	if !strings.Contains(out, "fail 3") {
		t.Error("fail message suppressed at enabled level")
	}
	if strings.Contains(out, "io 4") {
		t.Error("io message emitted at disabled level")
	}
}

func TestDebugSetLevel(t *testing.T) {
	var buf bytes.Buffer
	dbg := NewDebug(DebugNone, &buf)

	dbg.Infof("before")
	dbg.SetLevel(DebugAll)
	dbg.Infof("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("message emitted while disabled")
	}
	if !strings.Contains(out, "after") {
		t.Error("message suppressed after SetLevel")
	}
}

func TestNilDebug(t *testing.T) {
	// A nil sink must be safe to log to from any call site.
	var dbg *Debug
	dbg.Infof("into the void")
	dbg.Warnf("into the void")
	dbg.Failf("into the void")
	dbg.IOf("into the void")
	dbg.SetLevel(DebugAll)
}
