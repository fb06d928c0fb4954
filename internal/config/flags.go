package config

import "flag"

// RegisterFlags defines the benchmark's CLI flag table on fs, both the
// short letter forms and the long names koanf keys expect. Short and long
// forms of the same option are bound to the same variable, so either
// spelling updates the value basicflag.Provider later reads.
func RegisterFlags(fs *flag.FlagSet) {
	controller := "localhost"
	fs.StringVar(&controller, "controller", controller, "controller hostname")
	fs.StringVar(&controller, "c", controller, "controller hostname (shorthand)")

	port := 6653
	fs.IntVar(&port, "port", port, "controller TCP port")
	fs.IntVar(&port, "p", port, "controller TCP port (shorthand)")

	loops := 16
	fs.IntVar(&loops, "loops", loops, "loops per test")
	fs.IntVar(&loops, "l", loops, "loops per test (shorthand)")

	msPerTest := 1000
	fs.IntVar(&msPerTest, "ms-per-test", msPerTest, "measurement window length in ms")
	fs.IntVar(&msPerTest, "m", msPerTest, "measurement window length in ms (shorthand)")

	macAddresses := 100000
	fs.IntVar(&macAddresses, "mac-addresses", macAddresses, "distinct source MACs per switch")
	fs.IntVar(&macAddresses, "M", macAddresses, "distinct source MACs per switch (shorthand)")

	throughput := false
	fs.BoolVar(&throughput, "throughput", throughput, "use throughput mode instead of latency mode")
	fs.BoolVar(&throughput, "t", throughput, "use throughput mode instead of latency mode (shorthand)")

	warmup := 1
	fs.IntVar(&warmup, "warmup", warmup, "leading loops discarded from statistics")
	fs.IntVar(&warmup, "w", warmup, "leading loops discarded from statistics (shorthand)")

	cooldown := 0
	fs.IntVar(&cooldown, "cooldown", cooldown, "trailing loops discarded from statistics")
	fs.IntVar(&cooldown, "C", cooldown, "trailing loops discarded from statistics (shorthand)")

	delay := 0
	fs.IntVar(&delay, "delay", delay, "settling delay after handshake, in ms")
	fs.IntVar(&delay, "D", delay, "settling delay after handshake, in ms (shorthand)")

	switchAddDelay := "0s"
	fs.StringVar(&switchAddDelay, "switch-add-delay", switchAddDelay, "delay between opening switch connections")
	fs.StringVar(&switchAddDelay, "e", switchAddDelay, "delay between opening switch connections (shorthand)")

	switchesPerThread := 1
	fs.IntVar(&switchesPerThread, "switches-per-thread", switchesPerThread, "fan-out per worker")
	fs.IntVar(&switchesPerThread, "S", switchesPerThread, "fan-out per worker (shorthand)")

	delayPerThread := "1ms"
	fs.StringVar(&delayPerThread, "delay-per-thread", delayPerThread, "delay between spawning workers")
	fs.StringVar(&delayPerThread, "T", delayPerThread, "delay between spawning workers (shorthand)")

	totalThreads := 1
	fs.IntVar(&totalThreads, "total-threads", totalThreads, "worker count")
	fs.IntVar(&totalThreads, "Z", totalThreads, "worker count (shorthand)")

	learnDstMACs := true
	fs.BoolVar(&learnDstMACs, "learn-dst-macs", learnDstMACs, "send priming ARP replies before measuring")
	fs.BoolVar(&learnDstMACs, "L", learnDstMACs, "send priming ARP replies before measuring (shorthand)")

	debug := false
	fs.BoolVar(&debug, "debug", debug, "verbose per-switch logging")
	fs.BoolVar(&debug, "d", debug, "verbose per-switch logging (shorthand)")

	debugThreads := false
	fs.BoolVar(&debugThreads, "debug-threads", debugThreads, "verbose per-thread logging")
	fs.BoolVar(&debugThreads, "q", debugThreads, "verbose per-thread logging (shorthand)")

	metricsAddr := ""
	fs.StringVar(&metricsAddr, "metrics-addr", metricsAddr, "Prometheus /metrics listen address, empty disables it")

	logLevel := "info"
	fs.StringVar(&logLevel, "log-level", logLevel, "stderr log level: debug, info, warn, error")
}
