package fakeswitch_test

import (
	"encoding/binary"
	"testing"

	"github.com/ofcbench/cbench/internal/fakeswitch"
)

func TestBuildMeasurementFrameSize(t *testing.T) {
	t.Parallel()

	src := [6]byte{0x02, 0, 0, 0, 0, 1}
	f := fakeswitch.BuildMeasurementFrame(src)

	if len(f) != fakeswitch.MeasurementFrameSize {
		t.Fatalf("len = %d, want %d", len(f), fakeswitch.MeasurementFrameSize)
	}
	if len(f) < 60 {
		t.Fatalf("len = %d, below minimum Ethernet frame size 60", len(f))
	}

	etherType := binary.BigEndian.Uint16(f[12:14])
	if etherType != 0x0800 {
		t.Errorf("EtherType = %#x, want 0x0800", etherType)
	}
	var gotSrc [6]byte
	copy(gotSrc[:], f[6:12])
	if gotSrc != src {
		t.Errorf("src MAC = %v, want %v", gotSrc, src)
	}
}

func TestBuildLearnFrameIsARP(t *testing.T) {
	t.Parallel()

	src := [6]byte{0x02, 0, 0, 1, 2, 3}
	dst := [6]byte{0x02, 0, 0, 4, 5, 6}
	f := fakeswitch.BuildLearnFrame(src, dst)

	etherType := binary.BigEndian.Uint16(f[12:14])
	if etherType != 0x0806 {
		t.Errorf("EtherType = %#x, want 0x0806 (ARP)", etherType)
	}

	oper := binary.BigEndian.Uint16(f[14+6 : 14+8])
	if oper != 2 {
		t.Errorf("ARP oper = %d, want 2 (reply)", oper)
	}

	var gotSender [6]byte
	copy(gotSender[:], f[14+8:14+14])
	if gotSender != src {
		t.Errorf("ARP sender MAC = %v, want %v", gotSender, src)
	}
}
