// Package worker drives one goroutine's worth of fakeswitches against a
// controller: dialing connections, pumping an iomux.Poller, and folding
// counts into the shared measurement matrix.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// DialTimeout bounds how long a single switch connection attempt may take
// before it is abandoned.
const DialTimeout = 3 * time.Second

// ErrNotTCPConn indicates net.Dial returned a connection type other than
// *net.TCPConn, which should never happen for a "tcp" network dial.
var ErrNotTCPConn = errors.New("worker: dial did not return a TCP connection")

// Conn is an open TCP connection to a controller. Reads and writes go
// straight to the raw file descriptor extracted at dial time rather than
// through net.TCPConn, so the connection can be driven entirely by an
// iomux.Poller instead of the Go runtime's own netpoller. The *net.TCPConn
// is kept alive only to own the descriptor's lifetime and to apply
// TCP_NODELAY once via the standard library.
type Conn struct {
	tcp *net.TCPConn
	fd  uintptr
}

// FD returns the raw file descriptor backing the connection, for
// registration with an iomux.Poller.
func (c *Conn) FD() uintptr { return c.fd }

// Read reads directly from the raw file descriptor. A zero n with
// syscall.EAGAIN means no data is currently available; callers drive
// retries from iomux.Event.Readable.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := unix.Read(int(c.fd), p)
	if err != nil {
		return 0, fmt.Errorf("read fd %d: %w", c.fd, err)
	}
	return n, nil
}

// Write writes directly to the raw file descriptor. A zero n with
// syscall.EAGAIN means the socket buffer is full; callers drive retries
// from iomux.Event.Writable.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := unix.Write(int(c.fd), p)
	if err != nil {
		return 0, fmt.Errorf("write fd %d: %w", c.fd, err)
	}
	return n, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	if err := c.tcp.Close(); err != nil {
		return fmt.Errorf("close fd %d: %w", c.fd, err)
	}
	return nil
}

// Dial opens a TCP connection to addr, bounded by DialTimeout, then
// applies TCP_NODELAY unless disableNoDelay is set (throughput mode
// prefers Nagle's batching over per-write latency) and extracts the raw
// file descriptor for direct, netpoller-bypassing I/O.
func Dial(ctx context.Context, addr string, disableNoDelay bool) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	tcp, ok := nc.(*net.TCPConn)
	if !ok {
		_ = nc.Close()
		return nil, ErrNotTCPConn
	}

	// Go turns TCP_NODELAY on for every new TCP connection, so it is set
	// explicitly either way.
	if err := tcp.SetNoDelay(!disableNoDelay); err != nil {
		_ = tcp.Close()
		return nil, fmt.Errorf("set TCP_NODELAY on %s: %w", addr, err)
	}

	fd, err := rawFD(tcp)
	if err != nil {
		_ = tcp.Close()
		return nil, fmt.Errorf("extract fd for %s: %w", addr, err)
	}

	return &Conn{tcp: tcp, fd: fd}, nil
}

// rawFD extracts the file descriptor backing tcp via SyscallConn, the
// same raw-conn pattern the daemon this tool is descended from uses to
// reach setsockopt on a *net.UDPConn. Go's net package already leaves the
// descriptor in non-blocking mode for its own runtime poller, which is
// exactly the mode direct epoll-driven I/O needs too.
func rawFD(tcp *net.TCPConn) (uintptr, error) {
	raw, err := tcp.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("SyscallConn: %w", err)
	}

	var fd uintptr
	ctlErr := raw.Control(func(f uintptr) {
		fd = f
	})
	if ctlErr != nil {
		return 0, fmt.Errorf("raw conn control: %w", ctlErr)
	}

	return fd, nil
}
