// Package fakeswitch implements the per-connection OpenFlow 1.0 switch
// impersonation that drives a controller-under-test: handshake,
// destination-MAC learning priming, and the latency/throughput packet-in
// generators.
//
// A Switch owns no socket itself — internal/worker reads and writes raw
// file descriptors and hands the bytes to Switch.Consume/Switch.Generate,
// keeping protocol state and socket I/O in separate packages.
package fakeswitch
