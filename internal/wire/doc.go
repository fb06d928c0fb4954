// Package wire implements the OpenFlow 1.0 wire format used by the
// fakeswitch state machine: the 8-byte message header and constructors for
// every message kind the benchmark harness emits or consumes.
//
// Every multi-byte header field is network byte order. xid on reply
// messages always echoes the request's xid bit-for-bit; xid on unsolicited
// PACKET_IN messages is a caller-supplied monotonic counter.
package wire
