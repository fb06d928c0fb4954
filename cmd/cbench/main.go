// Command cbench is an OpenFlow 1.0 controller benchmarking harness: it
// drives N worker goroutines, each impersonating a set of fake switches
// against a controller under test, and reports flow-install throughput.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ofcbench/cbench/internal/config"
	"github.com/ofcbench/cbench/internal/metrics"
	"github.com/ofcbench/cbench/internal/orchestrator"
	appversion "github.com/ofcbench/cbench/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	fs := flag.CommandLine
	config.RegisterFlags(fs)
	flag.Parse()

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("cbench starting",
		slog.String("version", appversion.Version),
		slog.String("controller", cfg.Controller),
		slog.Int("port", int(cfg.Port)))

	reg := prometheus.NewRegistry()
	mc := metrics.NewCollector(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The metrics server must keep serving for the whole benchmark run but
	// has no reason to outlive it: listenAndServe only unblocks on ctx
	// cancellation, and errgroup.WithContext only cancels gctx when a
	// goroutine returns a non-nil error, so a successful orchestrator run
	// would otherwise leave it blocked forever. metricsCtx is canceled
	// explicitly once the orchestrator goroutine returns, success or not.
	metricsCtx, cancelMetrics := context.WithCancel(ctx)
	defer cancelMetrics()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		metricsSrv := newMetricsServer(cfg.MetricsAddr, reg)
		g.Go(func() error {
			logger.Info("metrics server listening", slog.String("addr", cfg.MetricsAddr))
			return listenAndServe(metricsCtx, metricsSrv, cfg.MetricsAddr)
		})
	}

	printBanner(os.Stderr, cfg)

	g.Go(func() error {
		defer cancelMetrics()
		return orchestrator.Run(gctx, cfg, logger, mc, os.Stderr)
	})

	if err := g.Wait(); err != nil {
		logger.Error("cbench exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "cbench: %v\n", err)
		return 1
	}

	return 0
}

// printBanner writes the configuration summary block preceding the first
// worker spawn line.
func printBanner(out *os.File, cfg *config.Config) {
	mode := "latency"
	if cfg.Throughput {
		mode = "throughput"
	}
	fmt.Fprintf(out, "cbench: %s:%d, %d threads x %d switches, mode=%s, loops=%d, ms-per-test=%d\n",
		cfg.Controller, cfg.Port, cfg.TotalThreads, cfg.SwitchesPerThread, mode, cfg.Loops, cfg.MSPerTest)
}

// newLogger builds a stderr structured logger at the level named by
// levelName (debug, info, warn, error).
func newLogger(levelName string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(levelName)}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newMetricsServer builds the Prometheus /metrics HTTP server.
func newMetricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// listenAndServe runs srv until ctx is canceled, at which point it shuts
// the server down rather than leaving it to fail the errgroup when the
// benchmark itself has already finished.
func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}
