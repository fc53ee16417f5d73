package fli

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// inetTransport reaches a network-attached device (or protocol bridge)
// over a TCP connection. Addresses take the host:port form; there is no
// broadcast discovery, so inet devices are always opened by explicit
// address.
type inetTransport struct {
	mu     sync.RWMutex
	conn   net.Conn
	closed bool
	dbg    *Debug
}

var _ Transport = (*inetTransport)(nil)

const inetDialTimeout = 5 * time.Second

func dialInet(address string, dbg *Debug) (Transport, error) {
	if !strings.Contains(address, ":") {
		return nil, fmt.Errorf("%w: %q is not host:port", ErrInvalidAddress, address)
	}

	conn, err := net.DialTimeout("tcp", address, inetDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrTransport, address, err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		// Command frames are tiny; waiting for coalescing only adds
		// latency to every exchange.
		tc.SetNoDelay(true)
	}

	dbg.Infof("inet transport open: %s", address)
	return &inetTransport{conn: conn, dbg: dbg}, nil
}

func (t *inetTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	err := t.conn.Close()
	t.closed = true
	t.dbg.Infof("inet transport closed: %s", t.conn.RemoteAddr())
	return err
}

func (t *inetTransport) Read(buf []byte) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return 0, ErrClosed
	}

	return t.conn.Read(buf)
}

func (t *inetTransport) Write(data []byte) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return 0, ErrClosed
	}

	return t.conn.Write(data)
}

// ReadContext maps the context deadline onto the connection's read
// deadline.
func (t *inetTransport) ReadContext(ctx context.Context, buf []byte) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return 0, ErrClosed
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetReadDeadline(deadline)
	} else {
		t.conn.SetReadDeadline(time.Time{})
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, context.DeadlineExceeded
		}
	}
	return n, err
}

// WriteContext maps the context deadline onto the connection's write
// deadline.
func (t *inetTransport) WriteContext(ctx context.Context, data []byte) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return 0, ErrClosed
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(deadline)
	} else {
		t.conn.SetWriteDeadline(time.Time{})
	}

	n, err := t.conn.Write(data)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, context.DeadlineExceeded
		}
	}
	return n, err
}
