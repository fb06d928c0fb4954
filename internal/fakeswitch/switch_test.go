package fakeswitch_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ofcbench/cbench/internal/fakeswitch"
	"github.com/ofcbench/cbench/internal/wire"
)

func newTestSwitch(t *testing.T, cfg fakeswitch.Config) *fakeswitch.Switch {
	t.Helper()
	return fakeswitch.NewSwitch(cfg, nil)
}

func readOne(t *testing.T, sw *fakeswitch.Switch) (wire.Header, []byte) {
	t.Helper()

	peek := sw.Outbuf().Peek(sw.Outbuf().Len())
	h, err := wire.PeekHeader(peek)
	if err != nil {
		t.Fatalf("PeekHeader: %v", err)
	}
	msg := sw.Outbuf().Peek(int(h.Length))
	sw.Outbuf().Discard(int(h.Length))
	return h, msg[wire.HeaderSize:]
}

func TestSwitchStartSendsHello(t *testing.T) {
	t.Parallel()

	sw := newTestSwitch(t, fakeswitch.Config{DPID: 1, TotalMACAddresses: 4})
	sw.Start()

	h, _ := readOne(t, sw)
	if h.Type != wire.TypeHello {
		t.Fatalf("Type = %v, want Hello", h.Type)
	}
	if sw.Outbuf().Len() != 0 {
		t.Fatalf("unexpected extra bytes in outbuf after HELLO")
	}
}

func TestSwitchHandshakeWithoutLearning(t *testing.T) {
	t.Parallel()

	sw := newTestSwitch(t, fakeswitch.Config{DPID: 5, TotalMACAddresses: 4, LearnDstMACs: false})

	req := wire.NewHello(1)
	wire.WriteHeader(req, wire.TypeFeaturesRequest, wire.HeaderSize, 1)
	if err := sw.Inbuf().Push(req[:wire.HeaderSize]); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if err := sw.Consume(); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if sw.State() != fakeswitch.StateReadyToSend {
		t.Fatalf("State = %v, want READY_TO_SEND", sw.State())
	}

	h, body := readOne(t, sw)
	if h.Type != wire.TypeFeaturesReply {
		t.Fatalf("Type = %v, want FeaturesReply", h.Type)
	}
	var dpid uint64
	for _, b := range body[0:8] {
		dpid = dpid<<8 | uint64(b)
	}
	if dpid != 5 {
		t.Errorf("dpid = %d, want 5", dpid)
	}
}

func TestSwitchHandshakeWithLearning(t *testing.T) {
	t.Parallel()

	sw := newTestSwitch(t, fakeswitch.Config{DPID: 9, TotalMACAddresses: 3, LearnDstMACs: true})

	req := make([]byte, wire.HeaderSize)
	wire.WriteHeader(req, wire.TypeFeaturesRequest, wire.HeaderSize, 1)
	if err := sw.Inbuf().Push(req); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := sw.Consume(); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if sw.State() != fakeswitch.StateLearnDsts {
		t.Fatalf("State = %v, want LEARN_DSTS", sw.State())
	}
	readOne(t, sw) // discard FEATURES_REPLY

	sw.Generate()

	var barrierXID uint32
	sawPacketIns := 0
	for sw.Outbuf().Len() > 0 {
		h, _ := readOne(t, sw)
		switch h.Type {
		case wire.TypePacketIn:
			sawPacketIns++
		case wire.TypeBarrierRequest:
			barrierXID = h.XID
		default:
			t.Fatalf("unexpected message type %v during learn priming", h.Type)
		}
	}
	if sawPacketIns != 3 {
		t.Fatalf("got %d learn PACKET_INs, want 3", sawPacketIns)
	}
	if barrierXID == 0 {
		t.Fatalf("no BARRIER_REQUEST observed after learn priming")
	}

	reply := make([]byte, wire.HeaderSize)
	wire.WriteHeader(reply, wire.TypeBarrierReply, wire.HeaderSize, barrierXID)
	if err := sw.Inbuf().Push(reply); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := sw.Consume(); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if sw.State() != fakeswitch.StateReadyToSend {
		t.Fatalf("State = %v, want READY_TO_SEND after BARRIER_REPLY", sw.State())
	}
}

func TestSwitchLatencyModeOneOutstanding(t *testing.T) {
	t.Parallel()

	sw := newTestSwitch(t, fakeswitch.Config{DPID: 2, Mode: fakeswitch.ModeLatency, TotalMACAddresses: 4})
	advanceToReady(t, sw)
	sw.OpenGate()

	sw.Generate()
	if sw.Outbuf().Len() == 0 {
		t.Fatalf("expected one PACKET_IN queued")
	}
	h, _ := readOne(t, sw)
	if h.Type != wire.TypePacketIn {
		t.Fatalf("Type = %v, want PacketIn", h.Type)
	}

	sw.Generate()
	if sw.Outbuf().Len() != 0 {
		t.Fatalf("latency mode sent a second probe before the first resolved")
	}

	resp := make([]byte, wire.HeaderSize)
	wire.WriteHeader(resp, wire.TypePacketOut, wire.HeaderSize, 99)
	if err := sw.Inbuf().Push(resp); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := sw.Consume(); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if sw.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", sw.Count())
	}

	sw.Generate()
	if sw.Outbuf().Len() == 0 {
		t.Fatalf("expected next probe after response resolved")
	}
}

func TestSwitchThroughputModeFillsBuffer(t *testing.T) {
	t.Parallel()

	sw := newTestSwitch(t, fakeswitch.Config{DPID: 3, Mode: fakeswitch.ModeThroughput, TotalMACAddresses: 4})
	advanceToReady(t, sw)
	sw.OpenGate()

	sw.Generate()
	if sw.Outbuf().Free() >= wire.HeaderSize+10+fakeswitch.MeasurementFrameSize {
		t.Fatalf("throughput mode left enough headroom for another frame: free=%d", sw.Outbuf().Free())
	}
}

func TestSwitchGateGatesGeneration(t *testing.T) {
	t.Parallel()

	sw := newTestSwitch(t, fakeswitch.Config{DPID: 4, Mode: fakeswitch.ModeThroughput, TotalMACAddresses: 4})
	advanceToReady(t, sw)

	sw.Generate()
	if sw.Outbuf().Len() != 0 {
		t.Fatalf("generator emitted PACKET_INs before the gate opened")
	}
}

func TestSwitchProtocolDesyncOnBadVersion(t *testing.T) {
	t.Parallel()

	sw := newTestSwitch(t, fakeswitch.Config{DPID: 1, TotalMACAddresses: 4})
	bad := []byte{0x02, 0, 0, 8, 0, 0, 0, 0}
	if err := sw.Inbuf().Push(bad); err != nil {
		t.Fatalf("Push: %v", err)
	}

	err := sw.Consume()
	if !errors.Is(err, fakeswitch.ErrProtocolDesync) {
		t.Fatalf("Consume err = %v, want ErrProtocolDesync", err)
	}
	if !errors.Is(sw.Err(), fakeswitch.ErrProtocolDesync) {
		t.Fatalf("Err() = %v, want ErrProtocolDesync", sw.Err())
	}
}

func TestSwitchConsumeWaitsOnPartialMessage(t *testing.T) {
	t.Parallel()

	sw := newTestSwitch(t, fakeswitch.Config{DPID: 1, TotalMACAddresses: 4})
	full := make([]byte, wire.HeaderSize)
	wire.WriteHeader(full, wire.TypeEchoRequest, wire.HeaderSize, 1)
	if err := sw.Inbuf().Push(full[:4]); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if err := sw.Consume(); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if sw.Err() != nil {
		t.Fatalf("Err() = %v, want nil while waiting for more bytes", sw.Err())
	}
}

func TestSwitchEchoPreservesBody(t *testing.T) {
	t.Parallel()

	sw := newTestSwitch(t, fakeswitch.Config{DPID: 1, TotalMACAddresses: 4})
	body := []byte("abc123")
	req := make([]byte, wire.HeaderSize+len(body))
	wire.WriteHeader(req, wire.TypeEchoRequest, uint16(len(req)), 42)
	copy(req[wire.HeaderSize:], body)
	if err := sw.Inbuf().Push(req); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := sw.Consume(); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	h, got := readOne(t, sw)
	if h.Type != wire.TypeEchoReply || h.XID != 42 {
		t.Fatalf("got Type=%v XID=%d, want EchoReply/42", h.Type, h.XID)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("body = %q, want %q", got, body)
	}
}

// advanceToReady drives sw from STARTED to READY_TO_SEND with learning
// disabled and discards the FEATURES_REPLY.
func advanceToReady(t *testing.T, sw *fakeswitch.Switch) {
	t.Helper()

	req := make([]byte, wire.HeaderSize)
	wire.WriteHeader(req, wire.TypeFeaturesRequest, wire.HeaderSize, 1)
	if err := sw.Inbuf().Push(req); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := sw.Consume(); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	readOne(t, sw)
}
