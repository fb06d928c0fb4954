//go:build !linux

package iomux

// New reports ErrUnsupportedPlatform: the benchmark harness's raw-fd,
// single-threaded-per-worker multiplexing model requires epoll.
func New(maxEvents int) (Poller, error) {
	return nil, ErrUnsupportedPlatform
}
