package fakeswitch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ofcbench/cbench/internal/wire"
)

// Mode selects the READY_TO_SEND traffic generator.
type Mode uint8

const (
	// ModeLatency sends one PACKET_IN at a time and waits for a response
	// before sending the next. Any PACKET_OUT or FLOW_MOD counts as that
	// response; buffer IDs are not matched.
	ModeLatency Mode = iota

	// ModeThroughput sends as many PACKET_INs as outbuf headroom allows on
	// every writable event.
	ModeThroughput
)

// String returns the human-readable name of m.
func (m Mode) String() string {
	if m == ModeThroughput {
		return "throughput"
	}
	return "latency"
}

// ErrProtocolDesync indicates the controller sent a structurally invalid
// message, or inbuf filled without ever completing a parseable message.
// Either condition means the TCP stream can no longer be trusted and the
// connection must be torn down; it is fatal to the entire benchmark run.
var ErrProtocolDesync = errors.New("fakeswitch: protocol desync")

// minPacketInSize is the size of one measurement PACKET_IN (header +
// packet_in fields + 60-byte Ethernet frame), the largest message the
// generator emits, used to decide whether outbuf has enough headroom to
// start another one.
const minPacketInSize = wire.HeaderSize + 10 + MeasurementFrameSize

// Config parameterizes a single Switch.
type Config struct {
	// DPID is this switch's OpenFlow datapath ID, reported in
	// FEATURES_REPLY and mixed into its synthesized MAC addresses.
	DPID uint64

	// Mode selects the READY_TO_SEND traffic pattern.
	Mode Mode

	// TotalMACAddresses bounds the rotating source-MAC space and, when
	// LearnDstMACs is set, the number of priming PACKET_INs sent in
	// LEARN_DSTS.
	TotalMACAddresses int

	// LearnDstMACs enables the LEARN_DSTS priming phase between STARTED
	// and READY_TO_SEND.
	LearnDstMACs bool

	// RingCapacity overrides the inbuf/outbuf size. Zero uses
	// MinRingCapacity.
	RingCapacity int
}

// Switch impersonates one OpenFlow 1.0 datapath over a single TCP
// connection. It owns no socket: the worker reads bytes into Inbuf and
// drains bytes from Outbuf, calling Consume and Generate around each
// readiness event.
type Switch struct {
	cfg Config
	log *slog.Logger

	in  *Ring
	out *Ring

	state    State
	macAlloc *MACAllocator
	learnDst [][6]byte
	learnIdx int

	awaitingBarrier bool
	learnBarrierXID uint32

	gateOpen         bool
	count            uint64
	probeOutstanding bool

	nextXID  uint32
	bufferID uint32

	packetInsSent uint64

	err error
}

// NewSwitch constructs a Switch in state STARTED, ready to have its
// connection's first bytes (a HELLO) written via Start.
func NewSwitch(cfg Config, log *slog.Logger) *Switch {
	if log == nil {
		log = slog.Default()
	}

	s := &Switch{
		cfg:      cfg,
		log:      log,
		in:       NewRing(cfg.RingCapacity),
		out:      NewRing(cfg.RingCapacity),
		state:    StateStarted,
		macAlloc: NewMACAllocator(cfg.DPID, cfg.TotalMACAddresses),
	}
	if cfg.LearnDstMACs {
		s.learnDst = s.macAlloc.All()
	}
	return s
}

// Inbuf is the ring the worker fills from the socket.
func (s *Switch) Inbuf() *Ring { return s.in }

// Outbuf is the ring the worker drains to the socket.
func (s *Switch) Outbuf() *Ring { return s.out }

// State returns the current FSM state.
func (s *Switch) State() State { return s.state }

// Err returns the sticky fatal error, if the connection has desynced.
func (s *Switch) Err() error { return s.err }

// Count returns the number of controller responses observed in the
// current measurement window.
func (s *Switch) Count() uint64 { return s.count }

// PacketInsSent returns the lifetime number of PACKET_IN messages this
// switch has queued, across priming and measurement alike.
func (s *Switch) PacketInsSent() uint64 { return s.packetInsSent }

// OpenGate begins a new measurement window: count resets to zero and the
// generator starts emitting PACKET_INs on the next Generate call.
func (s *Switch) OpenGate() {
	s.gateOpen = true
	s.count = 0
}

// CloseGate stops the generator from emitting further PACKET_INs without
// disturbing the count accumulated so far, so a brief drain period can
// still observe in-flight responses.
func (s *Switch) CloseGate() {
	s.gateOpen = false
}

// Start sends the initial HELLO. Must be called once, immediately after
// the connection is established.
func (s *Switch) Start() {
	s.enqueue(wire.NewHello(s.allocXID()))
}

// Consume parses and dispatches every complete message currently buffered
// in inbuf. It returns ErrProtocolDesync (also stored in Err) if the
// stream can no longer be trusted; the caller should then close the
// connection.
func (s *Switch) Consume() error {
	for {
		if s.err != nil {
			return s.err
		}

		peek := s.in.Peek(wire.HeaderSize)
		h, err := wire.PeekHeader(peek)
		if errors.Is(err, wire.ErrTruncated) {
			return nil
		}
		if err != nil {
			s.fatal(fmt.Errorf("%w: %v", ErrProtocolDesync, err))
			return s.err
		}

		if int(h.Length) > s.in.Cap() {
			s.fatal(fmt.Errorf("%w: message length %d exceeds ring capacity %d",
				ErrProtocolDesync, h.Length, s.in.Cap()))
			return s.err
		}
		if s.in.Len() < int(h.Length) {
			return nil
		}

		msg := s.in.Peek(int(h.Length))
		s.in.Discard(int(h.Length))
		s.handleMessage(h, msg[wire.HeaderSize:])
	}
}

func (s *Switch) handleMessage(h wire.Header, body []byte) {
	switch h.Type {
	case wire.TypeEchoRequest:
		s.enqueue(wire.NewEchoReply(h.XID, body))
	case wire.TypeFeaturesRequest:
		s.enqueue(wire.NewFeaturesReply(h.XID, s.cfg.DPID))
		s.onHandshakeEvent()
	case wire.TypeGetConfigRequest:
		s.enqueue(wire.NewGetConfigReply(h.XID))
	case wire.TypeVendor:
		s.enqueue(wire.NewVendorReply(h.XID))
	case wire.TypeStatsRequest:
		s.enqueue(wire.NewStatsReply(h.XID, wire.PeekStatsType(body)))
	case wire.TypeBarrierRequest:
		s.enqueue(wire.NewBarrierReply(h.XID))
	case wire.TypeBarrierReply:
		s.onBarrierReply(h.XID)
	case wire.TypeFlowMod:
		if s.state == StateReadyToSend {
			s.onControllerResponse()
		}
	case wire.TypePacketOut:
		if s.state == StateReadyToSend {
			s.onControllerResponse()
		} else if s.state == StateLearnDsts {
			s.count++
		}
	default:
		// Unknown types are silently acknowledged by doing nothing.
	}
}

func (s *Switch) onControllerResponse() {
	s.count++
	if s.cfg.Mode == ModeLatency {
		s.probeOutstanding = false
	}
}

// onHandshakeEvent fires once FEATURES_REPLY has been queued, the moment
// this switch counts as initialized for threads_started purposes.
func (s *Switch) onHandshakeEvent() {
	result := ApplyEvent(s.state, EventHandshakeDone, s.cfg.LearnDstMACs)
	s.applyTransition(result)
}

func (s *Switch) onBarrierReply(xid uint32) {
	if s.state != StateLearnDsts || !s.awaitingBarrier || xid != s.learnBarrierXID {
		return
	}
	s.awaitingBarrier = false
	result := ApplyEvent(s.state, EventLearnComplete, s.cfg.LearnDstMACs)
	s.applyTransition(result)
}

func (s *Switch) applyTransition(result FSMResult) {
	if !result.Changed {
		return
	}
	s.state = result.NewState
	s.log.Debug("fakeswitch state transition",
		slog.Uint64("dpid", s.cfg.DPID),
		slog.String("from", result.OldState.String()),
		slog.String("to", result.NewState.String()))
}

// Generate emits as many PACKET_INs as the current state and outbuf
// headroom permit. The worker calls this once per writable readiness
// event.
func (s *Switch) Generate() {
	if s.err != nil {
		return
	}

	switch s.state {
	case StateLearnDsts:
		s.generateLearn()
	case StateReadyToSend:
		if !s.gateOpen {
			return
		}
		if s.cfg.Mode == ModeLatency {
			s.generateLatency()
		} else {
			s.generateThroughput()
		}
	case StateStarted:
	}
}

func (s *Switch) generateLearn() {
	for s.learnIdx < len(s.learnDst) {
		if s.out.Free() < minPacketInSize {
			return
		}
		frame := BuildLearnFrame(s.learnDst[s.learnIdx], [6]byte{})
		s.bufferID++
		s.enqueue(wire.NewPacketIn(s.allocXID(), s.bufferID, frame))
		s.packetInsSent++
		s.learnIdx++
	}

	if len(s.learnDst) > 0 && s.learnIdx == len(s.learnDst) && !s.awaitingBarrier {
		s.learnBarrierXID = s.allocXID()
		s.awaitingBarrier = true
		s.enqueue(wire.NewBarrierRequest(s.learnBarrierXID))
	}
}

func (s *Switch) generateLatency() {
	if s.probeOutstanding {
		return
	}
	if s.out.Free() < minPacketInSize {
		return
	}
	frame := BuildMeasurementFrame(s.macAlloc.Next())
	s.bufferID++
	s.enqueue(wire.NewPacketIn(s.allocXID(), s.bufferID, frame))
	s.packetInsSent++
	s.probeOutstanding = true
}

func (s *Switch) generateThroughput() {
	for s.out.Free() >= minPacketInSize {
		frame := BuildMeasurementFrame(s.macAlloc.Next())
		s.bufferID++
		s.enqueue(wire.NewPacketIn(s.allocXID(), s.bufferID, frame))
		s.packetInsSent++
	}
}

func (s *Switch) allocXID() uint32 {
	s.nextXID++
	return s.nextXID
}

func (s *Switch) enqueue(msg []byte) {
	if err := s.out.Push(msg); err != nil {
		s.fatal(fmt.Errorf("%w: %v", ErrProtocolDesync, err))
	}
}

func (s *Switch) fatal(err error) {
	if s.err == nil {
		s.err = err
		s.log.Error("fakeswitch fatal error",
			slog.Uint64("dpid", s.cfg.DPID),
			slog.String("error", err.Error()))
	}
}
