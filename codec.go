package fli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openastro/go-fli/internal/wire"
)

// codec drives the framed command/response protocol over a Transport.
// It owns frame encoding, response accumulation across short reads,
// checksum validation, and bounded retries. Callers serialize access
// per physical device, so the codec itself carries no locking.
type codec struct {
	tr  Transport
	dbg *Debug

	timeout    time.Duration // ordinary command round-trip
	rowTimeout time.Duration // readout commands move more data
	retries    int

	seq  byte
	rbuf []byte
}

const (
	defaultCommandTimeout = 2 * time.Second
	defaultRowTimeout     = 10 * time.Second
	defaultMotionTimeout  = 30 * time.Second
	defaultRetries        = 3
)

func newCodec(tr Transport, dbg *Debug) *codec {
	return &codec{
		tr:         tr,
		dbg:        dbg,
		timeout:    defaultCommandTimeout,
		rowTimeout: defaultRowTimeout,
		retries:    defaultRetries,
	}
}

// deadlineFor returns the round-trip budget for op.
func (c *codec) deadlineFor(op wire.Op) time.Duration {
	switch op {
	case wire.OpGrabRow, wire.OpFlushRow:
		return c.rowTimeout
	default:
		return c.timeout
	}
}

// exchange sends one command and returns the response payload. A NAK
// from the device maps to ErrDeviceRejected (or a more specific kind
// for recognized fault codes) and is not retried; malformed frames and
// timeouts are retried up to the bounded count before surfacing as
// transport errors.
func (c *codec) exchange(op wire.Op, payload []byte) ([]byte, error) {
	wantSize, known := wire.ResponseSize(op)
	if !known {
		return nil, fmt.Errorf("%w: unknown opcode %v", ErrInvalidArgument, op)
	}

	c.seq++
	seq := c.seq
	cmd := wire.AppendFrame(nil, wire.STX, op, seq, payload)

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.dbg.Warnf("%v: retry %d after %v", op, attempt, lastErr)
			// Stale bytes from the failed attempt must not be parsed as
			// this attempt's response.
			c.rbuf = c.rbuf[:0]
			if st, ok := c.tr.(*serialTransport); ok {
				st.flushInput()
			}
		}

		resp, err := c.attempt(op, seq, cmd, wantSize)
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	if errors.Is(lastErr, ErrTimeout) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v failed after %d attempts: %v", ErrTransport, op, c.retries+1, lastErr)
}

// retryable reports whether an exchange failure is worth another
// attempt. Device faults and closed transports are final.
func retryable(err error) bool {
	if errors.Is(err, ErrDeviceRejected) ||
		errors.Is(err, ErrNotImplemented) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrClosed) {
		return false
	}
	return true
}

func (c *codec) attempt(op wire.Op, seq byte, cmd []byte, wantSize int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.deadlineFor(op))
	defer cancel()

	c.dbg.IOf("-> %v seq=%d len=%d", op, seq, len(cmd))
	if err := c.writeAll(ctx, cmd); err != nil {
		return nil, err
	}

	for {
		frame, err := c.readFrame(ctx)
		if err != nil {
			return nil, err
		}
		if frame.Op != op || frame.Seq != seq {
			// Response to an earlier, abandoned attempt. Skip it and
			// keep reading within the same deadline.
			c.dbg.IOf("<- stale %v seq=%d, discarded", frame.Op, frame.Seq)
			continue
		}
		c.dbg.IOf("<- %v seq=%d ack=%v len=%d", frame.Op, frame.Seq, frame.Ack(), len(frame.Payload))

		if !frame.Ack() {
			return nil, faultError(op, frame.Fault())
		}
		if wantSize != wire.Variable && len(frame.Payload) != wantSize {
			return nil, fmt.Errorf("%w: %v response payload %d bytes, want %d",
				ErrTransport, op, len(frame.Payload), wantSize)
		}
		return frame.Payload, nil
	}
}

// faultError maps a NAK fault code onto the error taxonomy.
func faultError(op wire.Op, fault byte) error {
	switch fault {
	case wire.FaultNotImplemented:
		return fmt.Errorf("%w: %v", ErrNotImplemented, op)
	case wire.FaultWrongDevice:
		return fmt.Errorf("%w: %v", ErrWrongDeviceType, op)
	case wire.FaultBadParameter:
		return fmt.Errorf("%w: device rejected %v parameters", ErrInvalidArgument, op)
	default:
		return fmt.Errorf("%w: %v fault 0x%02x", ErrDeviceRejected, op, fault)
	}
}

// writeAll writes the whole command frame, looping over short writes.
func (c *codec) writeAll(ctx context.Context, data []byte) error {
	for len(data) > 0 {
		n, err := c.tr.WriteContext(ctx, data)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: write", ErrTimeout)
			}
			if errors.Is(err, ErrClosed) {
				return err
			}
			return fmt.Errorf("%w: write: %v", ErrTransport, err)
		}
		data = data[n:]
	}
	return nil
}

// readFrame accumulates transport reads until a complete, valid frame
// is available. Malformed leading bytes are discarded one at a time to
// resynchronize on the next start byte.
func (c *codec) readFrame(ctx context.Context) (wire.Frame, error) {
	buf := make([]byte, 4096)
	for {
		for len(c.rbuf) > 0 {
			frame, consumed, err := wire.ParseFrame(c.rbuf)
			if err == nil {
				c.rbuf = c.rbuf[consumed:]
				return frame, nil
			}
			if errors.Is(err, wire.ErrShortFrame) {
				break
			}
			// Malformed: drop one byte and rescan.
			c.dbg.IOf("resync: dropped byte 0x%02x", c.rbuf[0])
			c.rbuf = c.rbuf[1:]
		}

		n, err := c.tr.ReadContext(ctx, buf)
		if n > 0 {
			c.rbuf = append(c.rbuf, buf[:n]...)
			continue
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return wire.Frame{}, fmt.Errorf("%w: no response", ErrTimeout)
			}
			if errors.Is(err, ErrClosed) {
				return wire.Frame{}, err
			}
			return wire.Frame{}, fmt.Errorf("%w: read: %v", ErrTransport, err)
		}
		// Zero-byte read without error: the serial transport's VTIME
		// expired with nothing buffered. Loop until the context bounds
		// the wait.
		select {
		case <-ctx.Done():
			return wire.Frame{}, fmt.Errorf("%w: no response", ErrTimeout)
		default:
		}
	}
}
