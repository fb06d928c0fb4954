package wire

import "encoding/binary"

// Stats types used by StatsRequest/StatsReply bodies (ofp_stats_types,
// OpenFlow 1.0 Section 5.3.5).
const (
	StatsDesc      uint16 = 0
	StatsFlow      uint16 = 1
	StatsAggregate uint16 = 2
	StatsTable     uint16 = 3
	StatsPort      uint16 = 4
	StatsQueue     uint16 = 5
	StatsVendor    uint16 = 0xffff
)

// descStatsLen is sizeof(ofp_desc_stats): four 256-byte string fields plus
// a 32-byte serial number (OpenFlow 1.0 Section 5.3.5).
const descStatsLen = 256*4 + 32

// aggregateStatsLen is sizeof(ofp_aggregate_stats_reply): packet_count(8) +
// byte_count(8) + flow_count(4) + pad(4).
const aggregateStatsLen = 24

// vendorStatsLen is the 4-byte vendor id carried by an OFPST_VENDOR reply.
const vendorStatsLen = 4

// featuresReplyBodyLen is sizeof(ofp_switch_features) header portion
// (datapath_id(8) + n_buffers(4) + n_tables(1) + pad(3) + capabilities(4) +
// actions(4)) plus exactly one ofp_phys_port entry (48 bytes), declaring a
// single OpenFlow port on the fake switch.
const featuresReplyBodyLen = 24 + 48

// packetInHeaderLen is sizeof(ofp_packet_in) up to the variable-length data
// field: buffer_id(4) + total_len(2) + in_port(2) + reason(1) + pad(1).
const packetInHeaderLen = 10

// reasonNoMatch is OFPR_NO_MATCH: no matching flow, forwarded to controller.
const reasonNoMatch uint8 = 0

func newMessage(typ Type, xid uint32, bodyLen int) []byte {
	buf := make([]byte, HeaderSize+bodyLen)
	WriteHeader(buf, typ, uint16(len(buf)), xid)
	return buf
}

// NewHello builds an empty-body HELLO message.
func NewHello(xid uint32) []byte {
	return newMessage(TypeHello, xid, 0)
}

// NewEchoReply builds an ECHO_REPLY that preserves the request's xid and
// echoes its body verbatim (OpenFlow 1.0 Section 5.5.3).
func NewEchoReply(xid uint32, body []byte) []byte {
	buf := newMessage(TypeEchoReply, xid, len(body))
	copy(buf[HeaderSize:], body)
	return buf
}

// NewFeaturesReply builds a FEATURES_REPLY declaring dpid as the datapath
// ID and a single fixed OpenFlow port (OpenFlow 1.0 Section 5.3.1).
func NewFeaturesReply(xid uint32, dpid uint64) []byte {
	buf := newMessage(TypeFeaturesReply, xid, featuresReplyBodyLen)
	body := buf[HeaderSize:]
	binary.BigEndian.PutUint64(body[0:8], dpid)
	// n_buffers, n_tables, pad, capabilities, actions are left zero: the
	// fake switch never models buffering or flow-table capacity.
	port := body[24:]
	binary.BigEndian.PutUint16(port[0:2], 1) // port_no
	copy(port[2:8], []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01})
	copy(port[8:24], "cbench0")
	return buf
}

// NewGetConfigReply builds a GET_CONFIG_REPLY with default flags and a
// miss_send_len large enough to carry the harness's synthetic frames
// (OpenFlow 1.0 Section 5.3.2).
func NewGetConfigReply(xid uint32) []byte {
	buf := newMessage(TypeGetConfigReply, xid, 4)
	binary.BigEndian.PutUint16(buf[HeaderSize+2:HeaderSize+4], 128)
	return buf
}

// NewVendorReply builds an empty VENDOR reply: no vendor extensions are
// implemented, so the body carries only a zero vendor id.
func NewVendorReply(xid uint32) []byte {
	return newMessage(TypeVendor, xid, vendorStatsLen)
}

// NewBarrierRequest builds a BARRIER_REQUEST, used by the fakeswitch to
// synchronize the end of MAC-learning priming.
func NewBarrierRequest(xid uint32) []byte {
	return newMessage(TypeBarrierRequest, xid, 0)
}

// NewBarrierReply builds a BARRIER_REPLY preserving the request's xid.
func NewBarrierReply(xid uint32) []byte {
	return newMessage(TypeBarrierReply, xid, 0)
}

// StatsReplyBodyLen returns the zero-filled body length for a STATS_REPLY
// of the given kind. Content is never modelled beyond a well-formed empty
// body of correct length.
func StatsReplyBodyLen(statsType uint16) int {
	switch statsType {
	case StatsDesc:
		return descStatsLen
	case StatsAggregate:
		return aggregateStatsLen
	case StatsVendor:
		return vendorStatsLen
	case StatsFlow, StatsTable, StatsPort, StatsQueue:
		return 0
	default:
		return 0
	}
}

// NewStatsReply builds a STATS_REPLY of the given kind with a zero-filled
// body of the matching length (OpenFlow 1.0 Section 5.3.5).
func NewStatsReply(xid uint32, statsType uint16) []byte {
	bodyLen := StatsReplyBodyLen(statsType)
	buf := newMessage(TypeStatsReply, xid, 4+bodyLen)
	binary.BigEndian.PutUint16(buf[HeaderSize:HeaderSize+2], statsType)
	return buf
}

// PeekStatsType returns the stats type field of a STATS_REQUEST body. body
// must be the message bytes following the 8-byte header and must be at
// least 2 bytes long.
func PeekStatsType(body []byte) uint16 {
	return binary.BigEndian.Uint16(body[0:2])
}

// NewPacketIn builds a PACKET_IN carrying payload as the embedded frame.
// Used both for steady-state measurement traffic (a synthetic
// Ethernet+IPv4+UDP frame) and MAC-learning priming (a synthetic ARP
// reply).
func NewPacketIn(xid uint32, bufferID uint32, payload []byte) []byte {
	buf := newMessage(TypePacketIn, xid, packetInHeaderLen+len(payload))
	body := buf[HeaderSize:]
	binary.BigEndian.PutUint32(body[0:4], bufferID)
	binary.BigEndian.PutUint16(body[4:6], uint16(len(payload)))
	binary.BigEndian.PutUint16(body[6:8], 1) // in_port
	body[8] = reasonNoMatch
	copy(body[packetInHeaderLen:], payload)
	return buf
}
