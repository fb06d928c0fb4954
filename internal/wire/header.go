package wire

import (
	"encoding/binary"
	"errors"
)

// Version is the OpenFlow wire version this package speaks.
const Version uint8 = 1

// HeaderSize is the fixed OpenFlow 1.0 message header size in bytes.
const HeaderSize = 8

// Type identifies an OpenFlow message kind (ofp_type, OpenFlow 1.0 Section A.1).
type Type uint8

// Message kinds consumed or produced by the fakeswitch.
const (
	TypeHello Type = iota
	TypeError
	TypeEchoRequest
	TypeEchoReply
	TypeVendor
	TypeFeaturesRequest
	TypeFeaturesReply
	TypeGetConfigRequest
	TypeGetConfigReply
	TypeSetConfig
	TypePacketIn
	TypeFlowRemoved
	TypePortStatus
	TypePacketOut
	TypeFlowMod
	TypePortMod
	TypeStatsRequest
	TypeStatsReply
	TypeBarrierRequest
	TypeBarrierReply
	TypeQueueGetConfigRequest
	TypeQueueGetConfigReply
)

// String returns the human-readable name of t, or "Unknown" for values this
// package does not construct or expect.
func (t Type) String() string {
	switch t {
	case TypeHello:
		return "Hello"
	case TypeError:
		return "Error"
	case TypeEchoRequest:
		return "EchoRequest"
	case TypeEchoReply:
		return "EchoReply"
	case TypeVendor:
		return "Vendor"
	case TypeFeaturesRequest:
		return "FeaturesRequest"
	case TypeFeaturesReply:
		return "FeaturesReply"
	case TypeGetConfigRequest:
		return "GetConfigRequest"
	case TypeGetConfigReply:
		return "GetConfigReply"
	case TypeSetConfig:
		return "SetConfig"
	case TypePacketIn:
		return "PacketIn"
	case TypeFlowRemoved:
		return "FlowRemoved"
	case TypePortStatus:
		return "PortStatus"
	case TypePacketOut:
		return "PacketOut"
	case TypeFlowMod:
		return "FlowMod"
	case TypePortMod:
		return "PortMod"
	case TypeStatsRequest:
		return "StatsRequest"
	case TypeStatsReply:
		return "StatsReply"
	case TypeBarrierRequest:
		return "BarrierRequest"
	case TypeBarrierReply:
		return "BarrierReply"
	case TypeQueueGetConfigRequest:
		return "QueueGetConfigRequest"
	case TypeQueueGetConfigReply:
		return "QueueGetConfigReply"
	default:
		return "Unknown"
	}
}

// Sentinel errors for header parsing. Both are recoverable: the caller's
// buffer is left untouched so it can wait for more bytes (ErrTruncated) or,
// for ErrInvalidHeader, decide the stream is desynchronized and abort the
// connection.
var (
	// ErrTruncated indicates fewer than HeaderSize bytes are currently
	// available. PeekHeader does not compare Length against the buffer;
	// waiting for the rest of the message is left to the caller.
	ErrTruncated = errors.New("wire: truncated message")

	// ErrInvalidHeader indicates a structurally impossible header: Length
	// below HeaderSize, or a version other than Version.
	ErrInvalidHeader = errors.New("wire: invalid header")
)

// Header is a decoded OpenFlow 1.0 message header.
type Header struct {
	Version uint8
	Type    Type
	Length  uint16
	XID     uint32
}

// PeekHeader decodes the header at the front of buf without consuming any
// bytes. It requires at least HeaderSize bytes to be present; the caller is
// responsible for then requiring Length bytes total before acting on the
// message.
func PeekHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrTruncated
	}

	h := Header{
		Version: buf[0],
		Type:    Type(buf[1]),
		Length:  binary.BigEndian.Uint16(buf[2:4]),
		XID:     binary.BigEndian.Uint32(buf[4:8]),
	}

	if h.Version != Version || h.Length < HeaderSize {
		return Header{}, ErrInvalidHeader
	}

	return h, nil
}

// WriteHeader encodes an OpenFlow 1.0 header into the first HeaderSize
// bytes of buf. buf must be at least HeaderSize bytes long.
func WriteHeader(buf []byte, typ Type, length uint16, xid uint32) {
	buf[0] = Version
	buf[1] = byte(typ)
	binary.BigEndian.PutUint16(buf[2:4], length)
	binary.BigEndian.PutUint32(buf[4:8], xid)
}
