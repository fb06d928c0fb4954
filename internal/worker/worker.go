package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ofcbench/cbench/internal/fakeswitch"
	"github.com/ofcbench/cbench/internal/iomux"
	"github.com/ofcbench/cbench/internal/metrics"
	"github.com/ofcbench/cbench/internal/stats"
)

// pollCeiling is the longest a single multiplexer wait may block, per the
// readiness wait's one-second ceiling.
const pollCeiling = time.Second

// drainSleep is how long a worker waits after closing the measurement
// gate for residual PACKET_OUTs/FLOW_MODs to land before reading counts
// into the matrix row.
const drainSleep = 100 * time.Millisecond

// Barrier is the subset of orchestrator.Barrier a worker depends on, kept
// as an interface so this package does not import its caller.
type Barrier interface {
	Wait(ctx context.Context) error
}

// Reporter receives per-loop and final statistics. Only worker 0 is ever
// given a non-nil Reporter; every other worker's reporter field is nil
// and the corresponding calls are skipped.
type Reporter interface {
	ReportLoop(loop int, windowMS float64)
	ReportFinal()
}

// Config parameterizes a single worker.
type Config struct {
	WorkerID int

	Addr string // "host:port" of the controller under test.

	SwitchesPerThread int
	DPIDOffset        uint64
	Mode              fakeswitch.Mode
	TotalMACAddresses int
	LearnDstMACs      bool
	SwitchAddDelay    time.Duration

	Loops     int
	MSPerTest int
	DelayMS   int

	Debug        bool
	DebugThreads bool
}

// Worker owns one partition of fakeswitches, drives them through an
// iomux.Poller, and reduces their counts into a row of the shared
// measurement matrix once per loop.
type Worker struct {
	cfg Config
	log *slog.Logger
	mc  *metrics.Collector

	threadsStarted *atomic.Int64
	totalThreads   int64
	barrier        Barrier
	row            []uint64
	reporter       Reporter

	poller   iomux.Poller
	switches []*fakeswitch.Switch
	conns    []*Conn
	fdToIdx  map[uintptr]int
	lastSeen []uint64
	lastSent []uint64
}

// New constructs a Worker. row must be exactly cfg.SwitchesPerThread long
// and is the matrix row this worker exclusively writes. reporter may be
// nil; only worker 0 should receive a non-nil one.
func New(
	cfg Config,
	log *slog.Logger,
	mc *metrics.Collector,
	threadsStarted *atomic.Int64,
	totalThreads int64,
	barrier Barrier,
	row []uint64,
	reporter Reporter,
) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		cfg:            cfg,
		log:            log,
		mc:             mc,
		threadsStarted: threadsStarted,
		totalThreads:   totalThreads,
		barrier:        barrier,
		row:            row,
		reporter:       reporter,
		fdToIdx:        make(map[uintptr]int, cfg.SwitchesPerThread),
		lastSeen:       make([]uint64, cfg.SwitchesPerThread),
		lastSent:       make([]uint64, cfg.SwitchesPerThread),
	}
}

// Run executes this worker's full lifecycle: connect, handshake, the
// Loops measurement windows, and final reporting. A returned error is
// always fatal to the whole run.
func (w *Worker) Run(ctx context.Context) error {
	poller, err := iomux.New(w.cfg.SwitchesPerThread * 2)
	if err != nil {
		w.failMetric()
		return fmt.Errorf("worker %d: new poller: %w", w.cfg.WorkerID, err)
	}
	w.poller = poller
	defer func() { _ = w.poller.Close() }()

	if err := w.connectAll(ctx); err != nil {
		w.failMetric()
		return err
	}
	defer w.closeAll()

	if err := w.awaitHandshakes(ctx); err != nil {
		w.failMetric()
		return err
	}

	if w.mc != nil {
		w.mc.SetActiveSwitches(w.cfg.WorkerID, w.cfg.Mode.String(), len(w.switches))
	}

	w.threadsStarted.Add(1)

	if err := w.awaitAllThreadsStarted(ctx); err != nil {
		w.failMetric()
		return err
	}

	for loop := 0; loop < w.cfg.Loops; loop++ {
		delayMS := 0
		if loop == 0 {
			delayMS = w.cfg.DelayMS
		}

		windowMS, err := w.runWindow(ctx, loop, delayMS)
		if err != nil {
			w.failMetric()
			return err
		}

		if err := w.barrier.Wait(ctx); err != nil {
			return fmt.Errorf("worker %d: loop %d barrier: %w", w.cfg.WorkerID, loop, err)
		}

		if w.reporter != nil {
			w.reporter.ReportLoop(loop, windowMS)
		}
	}

	if err := w.barrier.Wait(ctx); err != nil {
		return fmt.Errorf("worker %d: final barrier: %w", w.cfg.WorkerID, err)
	}

	if w.reporter != nil {
		w.reporter.ReportFinal()
	}

	return nil
}

func (w *Worker) failMetric() {
	if w.mc != nil {
		w.mc.IncFatalErrors(w.cfg.WorkerID)
	}
}

// connectAll opens SwitchesPerThread connections, paced by
// SwitchAddDelay, disabling Nagle outside throughput mode.
func (w *Worker) connectAll(ctx context.Context) error {
	w.switches = make([]*fakeswitch.Switch, w.cfg.SwitchesPerThread)
	w.conns = make([]*Conn, w.cfg.SwitchesPerThread)

	disableNoDelay := w.cfg.Mode == fakeswitch.ModeThroughput

	for i := 0; i < w.cfg.SwitchesPerThread; i++ {
		if i > 0 && w.cfg.SwitchAddDelay > 0 {
			time.Sleep(w.cfg.SwitchAddDelay)
		}

		conn, err := Dial(ctx, w.cfg.Addr, disableNoDelay)
		if err != nil {
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) {
				return fmt.Errorf("worker %d switch %d: %w: %v", w.cfg.WorkerID, i, ErrResolve, err)
			}
			return fmt.Errorf("worker %d switch %d: %w: %v", w.cfg.WorkerID, i, ErrConnect, err)
		}

		dpid := w.cfg.DPIDOffset + uint64(i)
		sw := fakeswitch.NewSwitch(fakeswitch.Config{
			DPID:              dpid,
			Mode:              w.cfg.Mode,
			TotalMACAddresses: w.cfg.TotalMACAddresses,
			LearnDstMACs:      w.cfg.LearnDstMACs,
		}, w.switchLogger(dpid))
		sw.Start()

		w.conns[i] = conn
		w.switches[i] = sw
		w.fdToIdx[conn.FD()] = i

		if err := w.poller.Add(conn.FD(), sw.Outbuf().Len() > 0); err != nil {
			return fmt.Errorf("worker %d switch %d: register fd: %w", w.cfg.WorkerID, i, err)
		}

		if w.cfg.DebugThreads {
			w.log.Debug("switch connected", slog.Int("worker", w.cfg.WorkerID), slog.Uint64("dpid", dpid))
		}
	}

	return nil
}

func (w *Worker) switchLogger(dpid uint64) *slog.Logger {
	if !w.cfg.Debug {
		return slog.New(slog.DiscardHandler)
	}
	return w.log.With(slog.Int("worker", w.cfg.WorkerID), slog.Uint64("dpid", dpid))
}

func (w *Worker) closeAll() {
	for _, c := range w.conns {
		if c != nil {
			_ = c.Close()
		}
	}
}

// awaitHandshakes drives the multiplexer until every owned switch has
// left StateStarted.
func (w *Worker) awaitHandshakes(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.allPastStarted() {
			return nil
		}
		if err := w.pump(pollCeiling); err != nil {
			return err
		}
	}
}

func (w *Worker) allPastStarted() bool {
	for _, sw := range w.switches {
		if sw.State() == fakeswitch.StateStarted {
			return false
		}
	}
	return true
}

// awaitAllThreadsStarted spins on the multiplexer (so other switches keep
// making handshake/LEARN_DSTS progress) until every worker has reported
// threads_started.
func (w *Worker) awaitAllThreadsStarted(ctx context.Context) error {
	for w.threadsStarted.Load() != w.totalThreads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.pump(100 * time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

// runWindow executes one measurement loop: gate opens after delayMS,
// window closes after delayMS+MSPerTest, then a drain sleep and matrix
// write. It returns the window length to use as the flows-per-ms
// divisor. loop is the literal loop index (0 on the very first call),
// independent of delayMS.
func (w *Worker) runWindow(ctx context.Context, loop int, delayMS int) (float64, error) {
	then := time.Now()
	gateOpened := delayMS == 0
	if gateOpened {
		w.openGates()
	}

	deadline := then.Add(time.Duration(delayMS+w.cfg.MSPerTest) * time.Millisecond)

	for {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		now := time.Now()
		if !gateOpened && now.Sub(then) >= time.Duration(delayMS)*time.Millisecond {
			w.openGates()
			gateOpened = true
		}

		if !now.Before(deadline) {
			break
		}

		remaining := deadline.Sub(now)
		wait := remaining
		if wait > pollCeiling {
			wait = pollCeiling
		}
		if err := w.pump(wait); err != nil {
			return 0, err
		}
	}

	w.closeGates()
	time.Sleep(drainSleep)

	if err := w.pump(50 * time.Millisecond); err != nil {
		return 0, err
	}

	for i, sw := range w.switches {
		w.row[i] = sw.Count()
	}

	windowMS := stats.WindowMS(loop, w.cfg.MSPerTest, stats.ElapsedMS(then), delayMS)

	return windowMS, nil
}

// openGates resets each switch's window count via OpenGate and the
// worker's own view of it in lockstep, so reportResponseDelta's
// cur > lastSeen comparison stays valid across loop boundaries.
func (w *Worker) openGates() {
	for i, sw := range w.switches {
		sw.OpenGate()
		w.lastSeen[i] = 0
	}
}

func (w *Worker) closeGates() {
	for _, sw := range w.switches {
		sw.CloseGate()
	}
}

// pump waits up to timeout for readiness events and processes them.
func (w *Worker) pump(timeout time.Duration) error {
	events, err := w.poller.Wait(timeout)
	if err != nil {
		return fmt.Errorf("worker %d: poller wait: %w", w.cfg.WorkerID, err)
	}

	for _, ev := range events {
		if err := w.processEvent(ev); err != nil {
			return err
		}
	}

	return nil
}

func (w *Worker) processEvent(ev iomux.Event) error {
	idx, ok := w.fdToIdx[ev.FD]
	if !ok {
		return nil
	}

	sw := w.switches[idx]
	conn := w.conns[idx]

	if ev.Readable {
		hadFree := sw.Inbuf().Free() > 0
		n, err := sw.Inbuf().FillFrom(conn)
		if n > 0 && w.mc != nil {
			w.mc.AddBytesReceived(w.cfg.WorkerID, uint64(n))
		}
		if err != nil && !isRetryable(err) {
			return fmt.Errorf("worker %d switch %d: %w: %v", w.cfg.WorkerID, idx, ErrIO, err)
		}
		if n == 0 && err == nil && hadFree {
			return fmt.Errorf("worker %d switch %d: %w: connection closed by peer", w.cfg.WorkerID, idx, ErrIO)
		}
		if err := sw.Consume(); err != nil {
			return fmt.Errorf("worker %d switch %d: %w", w.cfg.WorkerID, idx, err)
		}
		w.reportResponseDelta(idx, sw)
	}

	sw.Generate()
	w.reportSentDelta(idx, sw)

	if sw.Outbuf().Len() > 0 {
		n, err := sw.Outbuf().DrainTo(conn)
		if n > 0 && w.mc != nil {
			w.mc.AddBytesSent(w.cfg.WorkerID, uint64(n))
		}
		if err != nil && !isRetryable(err) {
			return fmt.Errorf("worker %d switch %d: %w: %v", w.cfg.WorkerID, idx, ErrIO, err)
		}
	}

	if err := w.poller.SetWriteInterest(ev.FD, sw.Outbuf().Len() > 0); err != nil {
		return fmt.Errorf("worker %d switch %d: set write interest: %w", w.cfg.WorkerID, idx, err)
	}

	return nil
}

func (w *Worker) reportResponseDelta(idx int, sw *fakeswitch.Switch) {
	if w.mc == nil {
		return
	}
	cur := sw.Count()
	if cur > w.lastSeen[idx] {
		w.mc.IncResponsesReceived(w.cfg.WorkerID, cur-w.lastSeen[idx])
		w.lastSeen[idx] = cur
	}
}

func (w *Worker) reportSentDelta(idx int, sw *fakeswitch.Switch) {
	if w.mc == nil {
		return
	}
	cur := sw.PacketInsSent()
	if cur > w.lastSent[idx] {
		w.mc.IncPacketInsSent(w.cfg.WorkerID, cur-w.lastSent[idx])
		w.lastSent[idx] = cur
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR)
}
