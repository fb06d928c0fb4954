package config_test

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ofcbench/cbench/internal/config"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()

	fs := flag.NewFlagSet("cbench", flag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("fs.Parse(%v): %v", args, err)
	}
	return fs
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Controller != "localhost" {
		t.Errorf("Controller = %q, want %q", cfg.Controller, "localhost")
	}
	if cfg.Port != 6653 {
		t.Errorf("Port = %d, want %d", cfg.Port, 6653)
	}
	if cfg.Loops != 16 {
		t.Errorf("Loops = %d, want %d", cfg.Loops, 16)
	}
	if cfg.MSPerTest != 1000 {
		t.Errorf("MSPerTest = %d, want %d", cfg.MSPerTest, 1000)
	}
	if cfg.MACAddresses != 100000 {
		t.Errorf("MACAddresses = %d, want %d", cfg.MACAddresses, 100000)
	}
	if cfg.Throughput {
		t.Error("Throughput = true, want false")
	}
	if cfg.Warmup != 1 {
		t.Errorf("Warmup = %d, want %d", cfg.Warmup, 1)
	}
	if cfg.Cooldown != 0 {
		t.Errorf("Cooldown = %d, want %d", cfg.Cooldown, 0)
	}
	if cfg.SwitchesPerThread != 1 {
		t.Errorf("SwitchesPerThread = %d, want %d", cfg.SwitchesPerThread, 1)
	}
	if cfg.DelayPerThread != time.Millisecond {
		t.Errorf("DelayPerThread = %v, want %v", cfg.DelayPerThread, time.Millisecond)
	}
	if cfg.TotalThreads != 1 {
		t.Errorf("TotalThreads = %d, want %d", cfg.TotalThreads, 1)
	}
	if !cfg.LearnDstMACs {
		t.Error("LearnDstMACs = false, want true")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadDefaultsOnly(t *testing.T) {
	t.Parallel()

	fs := newFlagSet(t)

	cfg, err := config.Load("", fs)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := config.DefaultConfig()
	if cfg.Controller != want.Controller {
		t.Errorf("Controller = %q, want %q", cfg.Controller, want.Controller)
	}
	if cfg.Port != want.Port {
		t.Errorf("Port = %d, want %d", cfg.Port, want.Port)
	}
	if cfg.TotalThreads != want.TotalThreads {
		t.Errorf("TotalThreads = %d, want %d", cfg.TotalThreads, want.TotalThreads)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
controller: "10.0.0.5"
port: 6700
loops: 20
throughput: true
`
	path := writeTemp(t, yamlContent)
	fs := newFlagSet(t)

	cfg, err := config.Load(path, fs)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Controller != "10.0.0.5" {
		t.Errorf("Controller = %q, want %q", cfg.Controller, "10.0.0.5")
	}
	if cfg.Port != 6700 {
		t.Errorf("Port = %d, want %d", cfg.Port, 6700)
	}
	if cfg.Loops != 20 {
		t.Errorf("Loops = %d, want %d", cfg.Loops, 20)
	}
	if !cfg.Throughput {
		t.Error("Throughput = false, want true")
	}

	// Unset fields inherit defaults.
	if cfg.MACAddresses != 100000 {
		t.Errorf("MACAddresses = %d, want default %d", cfg.MACAddresses, 100000)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	// Cannot run in parallel: mutates process environment.

	yamlContent := `
controller: "10.0.0.5"
port: 6700
`
	path := writeTemp(t, yamlContent)
	fs := newFlagSet(t)

	t.Setenv("CBENCH_CONTROLLER", "10.0.0.9")
	t.Setenv("CBENCH_TOTAL_THREADS", "4")

	cfg, err := config.Load(path, fs)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Controller != "10.0.0.9" {
		t.Errorf("Controller = %q, want %q (from env)", cfg.Controller, "10.0.0.9")
	}
	if cfg.TotalThreads != 4 {
		t.Errorf("TotalThreads = %d, want %d (from env)", cfg.TotalThreads, 4)
	}
	// File value survives where env didn't override it.
	if cfg.Port != 6700 {
		t.Errorf("Port = %d, want %d (from file)", cfg.Port, 6700)
	}
}

func TestLoadFlagsOverrideEnvAndFile(t *testing.T) {
	// Cannot run in parallel: mutates process environment.

	yamlContent := `
controller: "10.0.0.5"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("CBENCH_CONTROLLER", "10.0.0.9")

	fs := newFlagSet(t, "-controller", "10.0.0.42", "-Z", "8")

	cfg, err := config.Load(path, fs)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Controller != "10.0.0.42" {
		t.Errorf("Controller = %q, want %q (from flag)", cfg.Controller, "10.0.0.42")
	}
	if cfg.TotalThreads != 8 {
		t.Errorf("TotalThreads = %d, want %d (from shorthand flag)", cfg.TotalThreads, 8)
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	fs := newFlagSet(t)

	_, err := config.Load("/nonexistent/path/cbench.yml", fs)
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name:    "empty controller",
			modify:  func(cfg *config.Config) { cfg.Controller = "" },
			wantErr: config.ErrEmptyController,
		},
		{
			name:    "zero port",
			modify:  func(cfg *config.Config) { cfg.Port = 0 },
			wantErr: config.ErrInvalidPort,
		},
		{
			name:    "zero loops",
			modify:  func(cfg *config.Config) { cfg.Loops = 0 },
			wantErr: config.ErrInvalidLoops,
		},
		{
			name:    "zero ms-per-test",
			modify:  func(cfg *config.Config) { cfg.MSPerTest = 0 },
			wantErr: config.ErrInvalidMSPerTest,
		},
		{
			name:    "zero mac-addresses",
			modify:  func(cfg *config.Config) { cfg.MACAddresses = 0 },
			wantErr: config.ErrInvalidMACAddresses,
		},
		{
			name:    "zero switches-per-thread",
			modify:  func(cfg *config.Config) { cfg.SwitchesPerThread = 0 },
			wantErr: config.ErrInvalidSwitchesPer,
		},
		{
			name:    "zero total-threads",
			modify:  func(cfg *config.Config) { cfg.TotalThreads = 0 },
			wantErr: config.ErrInvalidTotalThreads,
		},
		{
			name: "warmup+cooldown too big",
			modify: func(cfg *config.Config) {
				cfg.Loops = 4
				cfg.Warmup = 2
				cfg.Cooldown = 2
			},
			wantErr: config.ErrWarmupCooldownTooBig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRegisterFlagsShortAndLongIndependent(t *testing.T) {
	t.Parallel()

	fs := newFlagSet(t, "-port", "6700", "-M", "50")

	cfg, err := config.Load("", fs)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != 6700 {
		t.Errorf("Port = %d, want %d (from long flag)", cfg.Port, 6700)
	}
	if cfg.MACAddresses != 50 {
		t.Errorf("MACAddresses = %d, want %d (from shorthand flag)", cfg.MACAddresses, 50)
	}
	// Every other string-typed flag must retain its own default, not
	// whatever the last-registered string flag happened to be.
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, "info")
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want default empty", cfg.MetricsAddr)
	}
	if cfg.SwitchAddDelay != 0 {
		t.Errorf("SwitchAddDelay = %v, want default 0", cfg.SwitchAddDelay)
	}
}

// writeTemp creates a temporary YAML file and returns its path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "cbench.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
