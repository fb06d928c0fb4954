// Package metrics exposes the benchmark's live counters as Prometheus
// metrics, the same client_golang vector pattern the daemon this tool is
// descended from uses for its own session metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "cbench"
	subsystem = "worker"
)

// Label names for worker metrics.
const (
	labelWorker = "worker"
	labelMode   = "mode"
)

// Collector holds all cbench Prometheus metrics. Every counter is labeled
// by worker ID so a dashboard can break volume down per goroutine, the way
// the daemon's Collector breaks packet counters down per peer.
type Collector struct {
	// PacketInsSent counts PACKET_IN messages written to the controller,
	// per worker.
	PacketInsSent *prometheus.CounterVec

	// ResponsesReceived counts FLOW_MOD/PACKET_OUT responses read back from
	// the controller, per worker.
	ResponsesReceived *prometheus.CounterVec

	// BytesSent counts raw bytes written to controller connections, per
	// worker.
	BytesSent *prometheus.CounterVec

	// BytesReceived counts raw bytes read from controller connections, per
	// worker.
	BytesReceived *prometheus.CounterVec

	// FatalErrors counts protocol desyncs and connection failures that
	// killed a worker, per worker.
	FatalErrors *prometheus.CounterVec

	// ActiveSwitches tracks the number of fakeswitches currently past the
	// handshake and generating load, per worker and mode.
	ActiveSwitches *prometheus.GaugeVec
}

// NewCollector creates a Collector with all cbench metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketInsSent,
		c.ResponsesReceived,
		c.BytesSent,
		c.BytesReceived,
		c.FatalErrors,
		c.ActiveSwitches,
	)

	return c
}

func newMetrics() *Collector {
	workerLabels := []string{labelWorker}
	switchLabels := []string{labelWorker, labelMode}

	return &Collector{
		PacketInsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packet_ins_sent_total",
			Help:      "Total PACKET_IN messages sent to the controller.",
		}, workerLabels),

		ResponsesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "responses_received_total",
			Help:      "Total FLOW_MOD/PACKET_OUT responses received from the controller.",
		}, workerLabels),

		BytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to controller connections.",
		}, workerLabels),

		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_received_total",
			Help:      "Total bytes read from controller connections.",
		}, workerLabels),

		FatalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fatal_errors_total",
			Help:      "Total fatal errors (protocol desync, connection failure) per worker.",
		}, workerLabels),

		ActiveSwitches: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_switches",
			Help:      "Number of fakeswitches currently generating load.",
		}, switchLabels),
	}
}

// WorkerLabel formats a worker ID as the label value the counters expect.
func WorkerLabel(workerID int) string {
	return strconv.Itoa(workerID)
}

// IncPacketInsSent increments the PACKET_IN counter for workerID by n.
func (c *Collector) IncPacketInsSent(workerID int, n uint64) {
	c.PacketInsSent.WithLabelValues(WorkerLabel(workerID)).Add(float64(n))
}

// IncResponsesReceived increments the response counter for workerID by n.
func (c *Collector) IncResponsesReceived(workerID int, n uint64) {
	c.ResponsesReceived.WithLabelValues(WorkerLabel(workerID)).Add(float64(n))
}

// AddBytesSent adds n to the bytes-sent counter for workerID.
func (c *Collector) AddBytesSent(workerID int, n uint64) {
	c.BytesSent.WithLabelValues(WorkerLabel(workerID)).Add(float64(n))
}

// AddBytesReceived adds n to the bytes-received counter for workerID.
func (c *Collector) AddBytesReceived(workerID int, n uint64) {
	c.BytesReceived.WithLabelValues(WorkerLabel(workerID)).Add(float64(n))
}

// IncFatalErrors increments the fatal-error counter for workerID.
func (c *Collector) IncFatalErrors(workerID int) {
	c.FatalErrors.WithLabelValues(WorkerLabel(workerID)).Inc()
}

// SetActiveSwitches sets the active-switch gauge for workerID and mode.
func (c *Collector) SetActiveSwitches(workerID int, mode string, n int) {
	c.ActiveSwitches.WithLabelValues(WorkerLabel(workerID), mode).Set(float64(n))
}
