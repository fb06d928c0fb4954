//go:build linux

package iomux

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the edge-triggered epoll backend. One epollPoller serves
// all fakeswitch connections owned by a single worker goroutine; it is not
// safe for concurrent use from multiple goroutines.
type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates an edge-triggered epoll poller sized for up to maxEvents
// readiness events per Wait call.
func New(maxEvents int) (Poller, error) {
	if maxEvents < 1 {
		maxEvents = 256
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("iomux: epoll_create1: %w", err)
	}

	return &epollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

func eventMask(writeInterest bool) uint32 {
	mask := uint32(unix.EPOLLIN | unix.EPOLLET)
	if writeInterest {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (p *epollPoller) Add(fd uintptr, writeInterest bool) error {
	ev := unix.EpollEvent{Events: eventMask(writeInterest), Fd: int32(fd)} //nolint:gosec // G115: fds are small positive ints.
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("iomux: epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) SetWriteInterest(fd uintptr, want bool) error {
	ev := unix.EpollEvent{Events: eventMask(want), Fd: int32(fd)} //nolint:gosec // G115
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(fd), &ev); err != nil {
		return fmt.Errorf("iomux: epoll_ctl mod fd %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Remove(fd uintptr) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("iomux: epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Wait(timeout time.Duration) ([]Event, error) {
	ms := int(timeout / time.Millisecond)

	n, err := unix.EpollWait(p.epfd, p.events, ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("iomux: epoll_wait: %w", err)
	}

	out := make([]Event, 0, n)
	for i := range n {
		ev := p.events[i]
		out = append(out, Event{
			FD:       uintptr(ev.Fd),
			Readable: ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
		})
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	if err := unix.Close(p.epfd); err != nil {
		return fmt.Errorf("iomux: close epoll fd: %w", err)
	}
	return nil
}
