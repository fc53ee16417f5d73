package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestChecksum(t *testing.T) {
	// CRC-16/CCITT-FALSE check value.
	if got := Checksum([]byte("123456789")); got != 0x29b1 {
		t.Errorf("Checksum(123456789) = 0x%04x, want 0x29b1", got)
	}
	if got := Checksum(nil); got != 0xffff {
		t.Errorf("Checksum(nil) = 0x%04x, want 0xffff", got)
	}
}

func TestFrameRoundtrip(t *testing.T) {
	tests := []struct {
		name    string
		start   byte
		op      Op
		seq     byte
		payload []byte
	}{
		{"command no payload", STX, OpExposeFrame, 1, nil},
		{"command with payload", STX, OpSetExposureTime, 42, []byte{0, 0, 0x27, 0x10}},
		{"ack response", ACK, OpGetTemperature, 7, make([]byte, 8)},
		{"nak response", NAK, OpGrabRow, 250, []byte{FaultBadParameter}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := AppendFrame(nil, tt.start, tt.op, tt.seq, tt.payload)

			frame, consumed, err := ParseFrame(buf)
			if err != nil {
				t.Fatalf("ParseFrame failed: %v", err)
			}
			if consumed != len(buf) {
				t.Errorf("consumed %d bytes, want %d", consumed, len(buf))
			}
			if frame.Start != tt.start || frame.Op != tt.op || frame.Seq != tt.seq {
				t.Errorf("frame = %+v, want start=0x%02x op=%v seq=%d", frame, tt.start, tt.op, tt.seq)
			}
			if !bytes.Equal(frame.Payload, tt.payload) && len(tt.payload) > 0 {
				t.Errorf("payload = %x, want %x", frame.Payload, tt.payload)
			}
		})
	}
}

func TestParseFrameShort(t *testing.T) {
	full := AppendFrame(nil, STX, OpGetModel, 3, []byte("abc"))

	// Every proper prefix must report a short frame, never corruption.
	for i := 0; i < len(full); i++ {
		_, _, err := ParseFrame(full[:i])
		if !errors.Is(err, ErrShortFrame) {
			t.Errorf("ParseFrame(%d byte prefix) = %v, want ErrShortFrame", i, err)
		}
	}
}

func TestParseFrameBad(t *testing.T) {
	good := AppendFrame(nil, STX, OpGetModel, 1, []byte("abc"))

	badStart := append([]byte(nil), good...)
	badStart[0] = 0x7f

	badCRC := append([]byte(nil), good...)
	badCRC[len(badCRC)-1] ^= 0xff

	oversized := []byte{STX, byte(OpGetModel), 1, 0xff, 0xff}

	tests := []struct {
		name string
		buf  []byte
	}{
		{"bad start byte", badStart},
		{"corrupted checksum", badCRC},
		{"oversized length", oversized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseFrame(tt.buf); !errors.Is(err, ErrBadFrame) {
				t.Errorf("ParseFrame = %v, want ErrBadFrame", err)
			}
		})
	}
}

func TestParseFrameBackToBack(t *testing.T) {
	buf := AppendFrame(nil, STX, OpGetModel, 1, nil)
	buf = AppendFrame(buf, STX, OpGetSerial, 2, nil)

	first, consumed, err := ParseFrame(buf)
	if err != nil {
		t.Fatalf("first ParseFrame failed: %v", err)
	}
	if first.Op != OpGetModel {
		t.Errorf("first frame op = %v, want OpGetModel", first.Op)
	}

	second, _, err := ParseFrame(buf[consumed:])
	if err != nil {
		t.Fatalf("second ParseFrame failed: %v", err)
	}
	if second.Op != OpGetSerial || second.Seq != 2 {
		t.Errorf("second frame = %+v, want OpGetSerial seq=2", second)
	}
}

func TestResponseSizeCoversAllOps(t *testing.T) {
	for op := OpNone + 1; op < opMax; op++ {
		if _, ok := ResponseSize(op); !ok {
			t.Errorf("no response size for %v", op)
		}
		if op.String() == "" || op.String()[0] == 'O' && op.String()[1] == 'p' {
			t.Errorf("no name for opcode 0x%02x", byte(op))
		}
	}
	if _, ok := ResponseSize(opMax); ok {
		t.Error("response size defined for out-of-range opcode")
	}
}

func TestFault(t *testing.T) {
	nak := Frame{Start: NAK, Payload: []byte{FaultHardware}}
	if nak.Fault() != FaultHardware {
		t.Errorf("Fault() = 0x%02x, want FaultHardware", nak.Fault())
	}
	ack := Frame{Start: ACK, Payload: []byte{FaultHardware}}
	if ack.Fault() != 0 {
		t.Errorf("ACK Fault() = 0x%02x, want 0", ack.Fault())
	}
}

func TestNumericHelpers(t *testing.T) {
	buf := AppendInt32(nil, -12345)
	if got := Int32(buf); got != -12345 {
		t.Errorf("Int32 roundtrip = %d, want -12345", got)
	}
	buf = AppendFloat64(nil, -21.5)
	if got := Float64(buf); got != -21.5 {
		t.Errorf("Float64 roundtrip = %v, want -21.5", got)
	}
}
