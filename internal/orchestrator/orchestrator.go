// Package orchestrator spawns and supervises the worker goroutines that
// drive a benchmark run: paced worker spawn, the cross-thread barrier and
// measurement matrix shared between them, and final statistics.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ofcbench/cbench/internal/config"
	"github.com/ofcbench/cbench/internal/fakeswitch"
	"github.com/ofcbench/cbench/internal/metrics"
	"github.com/ofcbench/cbench/internal/stats"
	"github.com/ofcbench/cbench/internal/worker"
)

// Run constructs the shared barrier and matrix, spawns cfg.TotalThreads
// workers paced by cfg.DelayPerThread, and blocks until every worker
// terminates. The first worker error cancels the remaining workers via
// ctx and is returned; there is no partial-run salvage.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger, mc *metrics.Collector, out io.Writer) error {
	if log == nil {
		log = slog.Default()
	}

	matrix := NewMatrix(cfg.TotalThreads, cfg.SwitchesPerThread)
	barrier := NewBarrier(cfg.TotalThreads)

	var threadsStarted atomic.Int64
	mode := fakeswitch.ModeLatency
	if cfg.Throughput {
		mode = fakeswitch.ModeThroughput
	}

	g, gctx := errgroup.WithContext(ctx)

	for t := 0; t < cfg.TotalThreads; t++ {
		t := t

		if t > 0 && cfg.DelayPerThread > 0 {
			time.Sleep(cfg.DelayPerThread)
		}

		wcfg := worker.Config{
			WorkerID:          t,
			Addr:              fmt.Sprintf("%s:%d", cfg.Controller, cfg.Port),
			SwitchesPerThread: cfg.SwitchesPerThread,
			DPIDOffset:        uint64(t) * uint64(cfg.SwitchesPerThread),
			Mode:              mode,
			TotalMACAddresses: cfg.MACAddresses,
			LearnDstMACs:      cfg.LearnDstMACs,
			SwitchAddDelay:    cfg.SwitchAddDelay,
			Loops:             cfg.Loops,
			MSPerTest:         cfg.MSPerTest,
			DelayMS:           cfg.DelayMS,
			Debug:             cfg.Debug,
			DebugThreads:      cfg.DebugThreads,
		}

		var reporter worker.Reporter
		if t == 0 {
			reporter = newLoopReporter(cfg, matrix, out)
		}

		log.Info("spawning worker",
			slog.Int("worker", t),
			slog.Int("switches", cfg.SwitchesPerThread),
			slog.Uint64("dpid_offset", wcfg.DPIDOffset))
		fmt.Fprintf(out, "worker %d: spawned, %d switches, dpid_offset %d\n", t, cfg.SwitchesPerThread, wcfg.DPIDOffset)

		w := worker.New(wcfg, log, mc, &threadsStarted, int64(cfg.TotalThreads), barrier, matrix.Row(t), reporter)

		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				log.Error("worker failed", slog.Int("worker", t), slog.String("error", err.Error()))
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// loopReporter is the worker.Reporter given only to worker 0: it reads
// the shared matrix after each barrier release and prints the per-loop
// and final aggregate lines spec.md's stderr format names.
type loopReporter struct {
	cfg    *config.Config
	matrix *Matrix
	out    io.Writer
	clock  time.Time

	perLoopFlowsMS []float64
}

func newLoopReporter(cfg *config.Config, matrix *Matrix, out io.Writer) *loopReporter {
	return &loopReporter{cfg: cfg, matrix: matrix, out: out, clock: time.Now()}
}

// ReportLoop prints one "HH:MM:SS.mmm N switches: flows: c0 c1 ... total =
// x per ms" line and retains the loop's flows-per-ms figure for the final
// summary.
func (r *loopReporter) ReportLoop(loop int, windowMS float64) {
	now := time.Now()
	total := r.matrix.Sum()
	flowsPerMS := 0.0
	if windowMS > 0 {
		flowsPerMS = float64(total) / windowMS
	}
	r.perLoopFlowsMS = append(r.perLoopFlowsMS, flowsPerMS)

	fmt.Fprintf(r.out, "%s %d switches: flows:  ", now.Format("15:04:05.000"), r.matrix.SwitchCount())
	for _, row := range r.matrix.Rows() {
		for _, c := range row {
			fmt.Fprintf(r.out, "%d ", c)
		}
	}
	fmt.Fprintf(r.out, "total = %.3f per ms\n", flowsPerMS)
}

// ReportFinal computes min/max/avg/stdev over the retained
// [warmup, loops-cooldown) loops and emits the RESULT line, each figure
// converted from flows-per-ms to responses-per-second.
func (r *loopReporter) ReportFinal() {
	lo := r.cfg.Warmup
	hi := len(r.perLoopFlowsMS) - r.cfg.Cooldown
	if lo < 0 {
		lo = 0
	}
	if hi > len(r.perLoopFlowsMS) {
		hi = len(r.perLoopFlowsMS)
	}

	var retained []float64
	if lo < hi {
		retained = make([]float64, hi-lo)
		for i, v := range r.perLoopFlowsMS[lo:hi] {
			retained[i] = v * 1000
		}
	}

	summary := stats.Summarize(retained)

	fmt.Fprintf(r.out, "RESULT: %d switches %d tests min/max/avg/stdev = %.3f/%.3f/%.3f/%.3f responses/s\n",
		r.matrix.SwitchCount(), len(retained), summary.Min, summary.Max, summary.Avg, summary.StdDev)
}
