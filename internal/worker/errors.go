package worker

import "errors"

// Fatal error kinds. Every one of these aborts the entire benchmark run;
// there is no partial-run salvage because a single missing switch
// invalidates the aggregate statistics.
var (
	// ErrResolve wraps a DNS lookup failure for the controller hostname.
	ErrResolve = errors.New("worker: resolution error")

	// ErrConnect wraps a failed or timed-out connection attempt other than
	// DNS resolution.
	ErrConnect = errors.New("worker: connect error")

	// ErrIO wraps a socket read/write failure other than EAGAIN/EINTR.
	ErrIO = errors.New("worker: io error")
)
