// Package iomux implements the per-worker readiness multiplexer: a single
// goroutine drives every fakeswitch connection owned by one worker through
// one readiness facility, deliberately bypassing Go's runtime netpoller so
// that I/O on a worker's sockets stays single-threaded and cooperative.
package iomux

import (
	"errors"
	"time"
)

// ErrUnsupportedPlatform is returned by New on platforms without an
// edge-triggered readiness backend.
var ErrUnsupportedPlatform = errors.New("iomux: no poller backend for this platform")

// Event reports readiness for one file descriptor.
type Event struct {
	FD       uintptr
	Readable bool
	Writable bool
}

// Poller is a readiness-oriented I/O multiplexer over raw file
// descriptors. Implementations are edge-triggered: a caller must re-arm
// write interest via SetWriteInterest whenever outbuf transitions between
// empty and non-empty, and must keep draining a readable fd until it
// would block.
type Poller interface {
	// Add registers fd for readability, and for writability if
	// writeInterest is true.
	Add(fd uintptr, writeInterest bool) error

	// SetWriteInterest re-arms (or disarms) writability notifications for
	// fd. Called whenever a connection's outbuf becomes non-empty (arm)
	// or is fully drained (disarm), per the buffer-discipline invariant.
	SetWriteInterest(fd uintptr, want bool) error

	// Remove deregisters fd. Does not close it.
	Remove(fd uintptr) error

	// Wait blocks for at most timeout for at least one ready fd, returning
	// the set of events observed. An empty result with a nil error means
	// the wait timed out or was interrupted with nothing ready.
	Wait(timeout time.Duration) ([]Event, error)

	// Close releases the poller's kernel resources.
	Close() error
}
