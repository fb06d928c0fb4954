package fakeswitch

// frame.go builds the synthetic Ethernet frames a fakeswitch embeds inside
// PACKET_IN messages: an Ethernet+IPv4+UDP frame for steady-state
// measurement traffic, and an Ethernet+ARP reply for MAC-learning priming.
// Neither frame is ever transmitted on a real wire; both exist only as the
// "data" field of a PACKET_IN, so header fields are filled with fixed,
// plausible-looking values rather than tracked per flow.

import "encoding/binary"

const (
	ethSize        = 14
	ipv4Size       = 20
	udpSize        = 8
	arpSize        = 28
	udpPayloadSize = 18 // pads the UDP frame so its total length is >= 60 bytes.

	etherTypeIPv4 uint16 = 0x0800
	etherTypeARP  uint16 = 0x0806

	ipv4VersionIHL uint8 = 0x45
	ipv4Protocol   uint8 = 17 // UDP
	ipv4TTL        uint8 = 64

	arpHTypeEthernet uint16 = 1
	arpOperReply     uint16 = 2

	measurementUDPSrcPort uint16 = 8080
	measurementUDPDstPort uint16 = 8080

	// MeasurementFrameSize is the total size of one measurement frame:
	// Ethernet(14) + IPv4(20) + UDP(8) + payload(18) = 60 bytes, the
	// minimum Ethernet frame size.
	MeasurementFrameSize = ethSize + ipv4Size + udpSize + udpPayloadSize
)

// BuildMeasurementFrame assembles a synthetic Ethernet+IPv4+UDP frame
// carrying src as the source MAC. Destination MAC, destination IP, and UDP
// ports are fixed placeholders; the source MAC varies, and the source IP
// follows its last two bytes, so that a controller under test sees
// distinct source hosts.
func BuildMeasurementFrame(src [6]byte) []byte {
	buf := make([]byte, MeasurementFrameSize)

	// Ethernet header.
	dst := [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	copy(buf[0:6], dst[:])
	copy(buf[6:12], src[:])
	binary.BigEndian.PutUint16(buf[12:14], etherTypeIPv4)

	// IPv4 header.
	ipOff := ethSize
	ipTotalLen := ipv4Size + udpSize + udpPayloadSize
	buf[ipOff] = ipv4VersionIHL
	buf[ipOff+1] = 0
	binary.BigEndian.PutUint16(buf[ipOff+2:ipOff+4], uint16(ipTotalLen))
	binary.BigEndian.PutUint16(buf[ipOff+4:ipOff+6], 0) // identification
	binary.BigEndian.PutUint16(buf[ipOff+6:ipOff+8], 0) // flags/fragment
	buf[ipOff+8] = ipv4TTL
	buf[ipOff+9] = ipv4Protocol
	buf[ipOff+10] = 0 // checksum, left zero: never validated by the controller
	buf[ipOff+11] = 0
	srcIP := [4]byte{10, 0, src[4], src[5]}
	dstIP := [4]byte{10, 0, 0, 1}
	copy(buf[ipOff+12:ipOff+16], srcIP[:])
	copy(buf[ipOff+16:ipOff+20], dstIP[:])

	// UDP header.
	udpOff := ethSize + ipv4Size
	binary.BigEndian.PutUint16(buf[udpOff:udpOff+2], measurementUDPSrcPort)
	binary.BigEndian.PutUint16(buf[udpOff+2:udpOff+4], measurementUDPDstPort)
	binary.BigEndian.PutUint16(buf[udpOff+4:udpOff+6], uint16(udpSize+udpPayloadSize))
	binary.BigEndian.PutUint16(buf[udpOff+6:udpOff+8], 0) // checksum optional for IPv4

	return buf
}

// BuildLearnFrame assembles a synthetic Ethernet+ARP-reply frame claiming
// src owns an address behind this switch, used to prime the controller's
// MAC learning table with dst as the destination for the reply.
func BuildLearnFrame(src, dst [6]byte) []byte {
	buf := make([]byte, ethSize+arpSize)

	copy(buf[0:6], dst[:])
	copy(buf[6:12], src[:])
	binary.BigEndian.PutUint16(buf[12:14], etherTypeARP)

	body := buf[ethSize:]
	binary.BigEndian.PutUint16(body[0:2], arpHTypeEthernet)
	binary.BigEndian.PutUint16(body[2:4], etherTypeIPv4)
	body[4] = 6 // hardware address length
	body[5] = 4 // protocol address length
	binary.BigEndian.PutUint16(body[6:8], arpOperReply)
	copy(body[8:14], src[:])
	copy(body[14:18], []byte{10, 0, src[4], src[5]})
	copy(body[18:24], dst[:])
	copy(body[24:28], []byte{10, 0, 0, 1})

	return buf
}
