// Package orchestrator spawns and supervises the worker goroutines that
// drive a benchmark run: paced worker spawn, the cross-thread barrier and
// measurement matrix shared between them, and final statistics.
package orchestrator

import (
	"context"
	"sync"
)

// Barrier is a reusable, generational N-party barrier: once N calls to
// Wait have arrived, all of them return together and the barrier resets
// for the next round. No suitable third-party reusable barrier exists in
// the dependency surface this module draws on (golang.org/x/sync ships
// errgroup and singleflight, not a barrier), so this is a direct
// sync.Mutex/sync.Cond implementation.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation uint64
	broken     bool
}

// NewBarrier constructs a Barrier for n parties.
func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until n parties have called Wait for the current
// generation, then releases them all and advances to the next
// generation. If ctx is canceled while waiting, Wait returns ctx.Err()
// and marks the barrier broken, unblocking every other waiter with the
// same error path.
func (b *Barrier) Wait(ctx context.Context) error {
	b.mu.Lock()

	if b.broken {
		b.mu.Unlock()
		return ctx.Err()
	}

	gen := b.generation
	b.count++

	if b.count == b.n {
		b.generation++
		b.count = 0
		b.cond.Broadcast()
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.mu.Lock()
		for gen == b.generation && !b.broken {
			b.cond.Wait()
		}
		b.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		b.mu.Lock()
		released := gen != b.generation
		b.mu.Unlock()
		if !released {
			return ctx.Err()
		}
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		b.broken = true
		b.cond.Broadcast()
		b.mu.Unlock()
		<-done
		return ctx.Err()
	}
}
