package fli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openastro/go-fli/internal/wire"
)

// scriptTransport feeds canned responses to the codec. The handler
// runs once per decoded command frame and returns the read chunks the
// codec will receive, letting tests control fragmentation and inject
// corruption.
type scriptTransport struct {
	handler  func(cmd wire.Frame) [][]byte
	incoming chan []byte
	writes   int
	wbuf     []byte
}

func newScriptTransport(handler func(cmd wire.Frame) [][]byte) *scriptTransport {
	return &scriptTransport{handler: handler, incoming: make(chan []byte, 64)}
}

func (s *scriptTransport) WriteContext(_ context.Context, data []byte) (int, error) {
	s.wbuf = append(s.wbuf, data...)
	for {
		frame, consumed, err := wire.ParseFrame(s.wbuf)
		if err != nil {
			break
		}
		s.wbuf = s.wbuf[consumed:]
		s.writes++
		for _, chunk := range s.handler(frame) {
			s.incoming <- chunk
		}
	}
	return len(data), nil
}

func (s *scriptTransport) ReadContext(ctx context.Context, buf []byte) (int, error) {
	select {
	case chunk := <-s.incoming:
		return copy(buf, chunk), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (s *scriptTransport) Write(data []byte) (int, error) {
	return s.WriteContext(context.Background(), data)
}

func (s *scriptTransport) Read(buf []byte) (int, error) {
	return s.ReadContext(context.Background(), buf)
}

func (s *scriptTransport) Close() error { return nil }

func testCodec(tr Transport) *codec {
	c := newCodec(tr, nil)
	c.timeout = 50 * time.Millisecond
	c.rowTimeout = 50 * time.Millisecond
	return c
}

func ack(cmd wire.Frame, payload []byte) []byte {
	return wire.AppendFrame(nil, wire.ACK, cmd.Op, cmd.Seq, payload)
}

func TestCodecExchange(t *testing.T) {
	tr := newScriptTransport(func(cmd wire.Frame) [][]byte {
		return [][]byte{ack(cmd, wire.AppendInt32(nil, 1234))}
	})
	c := testCodec(tr)

	resp, err := c.exchange(wire.OpGetHWRevision, nil)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if wire.Int32(resp) != 1234 {
		t.Errorf("response = %d, want 1234", wire.Int32(resp))
	}
	if tr.writes != 1 {
		t.Errorf("command written %d times, want 1", tr.writes)
	}
}

func TestCodecPartialReads(t *testing.T) {
	// The response arrives one byte at a time, as a slow serial link
	// delivers it.
	tr := newScriptTransport(func(cmd wire.Frame) [][]byte {
		resp := ack(cmd, wire.AppendInt32(nil, 7))
		chunks := make([][]byte, len(resp))
		for i := range resp {
			chunks[i] = resp[i : i+1]
		}
		return chunks
	})
	c := testCodec(tr)

	resp, err := c.exchange(wire.OpGetFilterPos, nil)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if wire.Int32(resp) != 7 {
		t.Errorf("response = %d, want 7", wire.Int32(resp))
	}
}

func TestCodecResyncAfterGarbage(t *testing.T) {
	// Line noise before the frame must be skipped without giving up
	// on the attempt.
	tr := newScriptTransport(func(cmd wire.Frame) [][]byte {
		return [][]byte{
			{0xde, 0xad, 0xbe, 0xef},
			ack(cmd, wire.AppendInt32(nil, 3)),
		}
	})
	c := testCodec(tr)

	resp, err := c.exchange(wire.OpGetFilterCount, nil)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if wire.Int32(resp) != 3 {
		t.Errorf("response = %d, want 3", wire.Int32(resp))
	}
	if tr.writes != 1 {
		t.Errorf("command written %d times, want 1", tr.writes)
	}
}

func TestCodecSkipsStaleResponse(t *testing.T) {
	tr := newScriptTransport(func(cmd wire.Frame) [][]byte {
		stale := wire.AppendFrame(nil, wire.ACK, cmd.Op, cmd.Seq-1, wire.AppendInt32(nil, 99))
		return [][]byte{stale, ack(cmd, wire.AppendInt32(nil, 5))}
	})
	c := testCodec(tr)

	resp, err := c.exchange(wire.OpGetActiveWheel, nil)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if wire.Int32(resp) != 5 {
		t.Errorf("response = %d, want 5; stale frame not skipped", wire.Int32(resp))
	}
}

func TestCodecNAKMapping(t *testing.T) {
	tests := []struct {
		name  string
		fault byte
		want  error
	}{
		{"not implemented", wire.FaultNotImplemented, ErrNotImplemented},
		{"bad parameter", wire.FaultBadParameter, ErrInvalidArgument},
		{"wrong device", wire.FaultWrongDevice, ErrWrongDeviceType},
		{"hardware fault", wire.FaultHardware, ErrDeviceRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newScriptTransport(func(cmd wire.Frame) [][]byte {
				return [][]byte{wire.AppendFrame(nil, wire.NAK, cmd.Op, cmd.Seq, []byte{tt.fault})}
			})
			c := testCodec(tr)

			_, err := c.exchange(wire.OpHomeDevice, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("exchange error = %v, want %v", err, tt.want)
			}
			if tr.writes != 1 {
				t.Errorf("NAK retried: %d writes, want 1", tr.writes)
			}
		})
	}
}

func TestCodecRetriesCorruptResponse(t *testing.T) {
	// First attempt gets a torn frame and nothing else; the retry
	// succeeds.
	attempts := 0
	tr := newScriptTransport(func(cmd wire.Frame) [][]byte {
		attempts++
		if attempts == 1 {
			good := ack(cmd, wire.AppendInt32(nil, 8))
			return [][]byte{good[:len(good)-3]}
		}
		return [][]byte{ack(cmd, wire.AppendInt32(nil, 8))}
	})
	c := testCodec(tr)

	resp, err := c.exchange(wire.OpGetStepperPos, nil)
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if wire.Int32(resp) != 8 {
		t.Errorf("response = %d, want 8", wire.Int32(resp))
	}
	if tr.writes != 2 {
		t.Errorf("command written %d times, want 2", tr.writes)
	}
}

func TestCodecTimeout(t *testing.T) {
	tr := newScriptTransport(func(cmd wire.Frame) [][]byte { return nil })
	c := testCodec(tr)
	c.retries = 2

	_, err := c.exchange(wire.OpGetModel, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("exchange error = %v, want ErrTimeout", err)
	}
	if tr.writes != 3 {
		t.Errorf("command written %d times, want 3 (initial + 2 retries)", tr.writes)
	}
}

func TestCodecResponseSizeMismatch(t *testing.T) {
	tr := newScriptTransport(func(cmd wire.Frame) [][]byte {
		// Two bytes where the opcode demands four.
		return [][]byte{ack(cmd, []byte{1, 2})}
	})
	c := testCodec(tr)

	_, err := c.exchange(wire.OpGetHWRevision, nil)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("exchange error = %v, want ErrTransport", err)
	}
}
