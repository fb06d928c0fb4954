package fakeswitch_test

import (
	"testing"

	"github.com/ofcbench/cbench/internal/fakeswitch"
)

func TestMACAllocatorRotates(t *testing.T) {
	t.Parallel()

	a := fakeswitch.NewMACAllocator(7, 3)

	seen := make(map[[6]byte]bool)
	for i := 0; i < 6; i++ {
		m := a.Next()
		seen[m] = true
		if m[0] != 0x02 {
			t.Fatalf("mac[0] = %#x, want 0x02 (locally administered)", m[0])
		}
	}
	if len(seen) != 3 {
		t.Fatalf("got %d distinct MACs over 2 full rotations, want 3", len(seen))
	}
}

func TestMACAllocatorDisjointByDPID(t *testing.T) {
	t.Parallel()

	a1 := fakeswitch.NewMACAllocator(1, 4)
	a2 := fakeswitch.NewMACAllocator(2, 4)

	for _, m1 := range a1.All() {
		for _, m2 := range a2.All() {
			if m1 == m2 {
				t.Fatalf("dpid 1 and dpid 2 produced overlapping MAC %v", m1)
			}
		}
	}
}

func TestMACAllocatorAllMatchesTotal(t *testing.T) {
	t.Parallel()

	a := fakeswitch.NewMACAllocator(9, 5)
	if got := len(a.All()); got != 5 {
		t.Fatalf("len(All()) = %d, want 5", got)
	}
}

func TestMACAllocatorClampsMinimum(t *testing.T) {
	t.Parallel()

	a := fakeswitch.NewMACAllocator(0, 0)
	if got := len(a.All()); got != 1 {
		t.Fatalf("len(All()) with totalMACs=0 = %d, want clamped to 1", got)
	}
}
