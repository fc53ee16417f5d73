package fli

import (
	"context"
)

// Transport is the raw byte channel between the library and one
// physical device. Implementations exist for serial lines, USB-serial
// bridges, and TCP connections; the simulated device provides an
// in-memory one. The codec above this layer owns framing, so a
// Transport only moves bytes.
//
// Read and Write follow io semantics. The context variants bound the
// call: when the context expires the call returns ctx.Err() and the
// codec treats the command as timed out. Closing a Transport aborts
// in-flight calls, which surface ErrClosed.
type Transport interface {
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)
	ReadContext(ctx context.Context, buf []byte) (int, error)
	WriteContext(ctx context.Context, data []byte) (int, error)
	Close() error
}

// readResult carries the outcome of a blocking read or write performed
// in a helper goroutine so the caller can select against a context.
type ioResult struct {
	n   int
	err error
}
