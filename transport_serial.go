package fli

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// serialTransport drives a tty character device through termios. FLI
// serial links are fixed 8N1 with no hardware flow control; only the
// baud rate varies by interface domain.
type serialTransport struct {
	mu     sync.RWMutex
	fd     int
	path   string
	closed bool
	dbg    *Debug
}

var _ Transport = (*serialTransport)(nil)

// baudForDomain returns the line rate an interface domain implies.
// Plain DomainSerial devices negotiate at the full rate.
func baudForDomain(iface Domain) (uint32, error) {
	switch iface {
	case DomainSerial, DomainUSB:
		return unix.B115200, nil
	case DomainSerial19200:
		return unix.B19200, nil
	case DomainSerial1200:
		return unix.B1200, nil
	default:
		return 0, fmt.Errorf("%w: domain %v is not a serial interface", ErrInvalidArgument, iface)
	}
}

// openSerial opens the tty at path and configures it for raw 8N1 I/O
// at the rate the interface domain implies.
func openSerial(path string, iface Domain, dbg *Debug) (Transport, error) {
	baud, err := baudForDomain(iface)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrTransport, path, err)
	}

	if err := configureTTY(fd, baud); err != nil {
		unix.Close(fd)
		return nil, err
	}

	dbg.Infof("serial transport open: %s", path)
	return &serialTransport{fd: fd, path: path, dbg: dbg}, nil
}

// configureTTY puts the tty in raw mode, 8N1, at the given rate.
func configureTTY(fd int, baud uint32) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("%w: get termios: %v", ErrTransport, err)
	}

	termios.Cflag = unix.CS8 | unix.CREAD | unix.CLOCAL
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0

	// VMIN=0/VTIME=1: reads return whatever is buffered after at most
	// 100ms. The codec loops on short reads, so a small VTIME keeps
	// context cancellation responsive.
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 1

	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("%w: set termios: %v", ErrTransport, err)
	}

	return nil
}

// Close closes the serial transport.
func (t *serialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	err := unix.Close(t.fd)
	t.closed = true
	t.dbg.Infof("serial transport closed: %s", t.path)
	return err
}

// Read reads whatever the line has buffered, waiting at most the
// termios VTIME interval.
func (t *serialTransport) Read(buf []byte) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return 0, ErrClosed
	}

	return unix.Read(t.fd, buf)
}

// Write writes data to the serial line.
func (t *serialTransport) Write(data []byte) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return 0, ErrClosed
	}

	return unix.Write(t.fd, data)
}

// ReadContext reads with context cancellation support.
func (t *serialTransport) ReadContext(ctx context.Context, buf []byte) (int, error) {
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

	resultCh := make(chan ioResult, 1)
	fd := t.fd

	go func() {
		n, err := unix.Read(fd, buf)
		resultCh <- ioResult{n: n, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// WriteContext writes with context cancellation support.
func (t *serialTransport) WriteContext(ctx context.Context, data []byte) (int, error) {
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

	resultCh := make(chan ioResult, 1)
	fd := t.fd

	go func() {
		n, err := unix.Write(fd, data)
		resultCh <- ioResult{n: n, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// flushInput discards unread input, used before a command exchange
// resynchronizes after a malformed frame.
func (t *serialTransport) flushInput() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrClosed
	}

	return unix.IoctlSetInt(t.fd, unix.TCFLSH, unix.TCIFLUSH)
}
