// Package config manages cbench configuration using koanf/v2, layering
// defaults, an optional YAML file, environment variables, and CLI flags --
// the same provider stack the daemon this tool is descended from uses for
// its own configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/basicflag"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete cbench configuration: one field per CLI flag,
// plus the ambient logging and metrics settings that have no flag-table
// equivalent in the benchmark's original tool.
type Config struct {
	// Controller is the OpenFlow controller hostname to connect to.
	Controller string `koanf:"controller"`

	// Port is the controller's TCP port.
	Port uint16 `koanf:"port"`

	// Loops is the total number of measurement windows to run.
	Loops int `koanf:"loops"`

	// MSPerTest is the length of one measurement window, in milliseconds.
	MSPerTest int `koanf:"ms-per-test"`

	// MACAddresses is the number of distinct source MACs each switch
	// rotates through.
	MACAddresses int `koanf:"mac-addresses"`

	// Throughput selects throughput mode over the default latency mode.
	Throughput bool `koanf:"throughput"`

	// Warmup is the number of leading loops discarded from statistics.
	Warmup int `koanf:"warmup"`

	// Cooldown is the number of trailing loops discarded from statistics.
	Cooldown int `koanf:"cooldown"`

	// DelayMS is the settling delay after FEATURES_REPLY, in milliseconds,
	// before a measurement window starts counting.
	DelayMS int `koanf:"delay"`

	// SwitchAddDelay is the pause between opening successive switch
	// connections within one worker.
	SwitchAddDelay time.Duration `koanf:"switch-add-delay"`

	// SwitchesPerThread is the number of fakeswitches each worker drives.
	SwitchesPerThread int `koanf:"switches-per-thread"`

	// DelayPerThread is the pause between spawning successive workers.
	DelayPerThread time.Duration `koanf:"delay-per-thread"`

	// TotalThreads is the number of worker goroutines to spawn.
	TotalThreads int `koanf:"total-threads"`

	// LearnDstMACs enables the LEARN_DSTS priming phase.
	LearnDstMACs bool `koanf:"learn-dst-macs"`

	// Debug enables verbose per-switch logging.
	Debug bool `koanf:"debug"`

	// DebugThreads enables verbose per-thread logging.
	DebugThreads bool `koanf:"debug-threads"`

	// MetricsAddr is the HTTP listen address for the Prometheus /metrics
	// endpoint. Empty disables the endpoint.
	MetricsAddr string `koanf:"metrics-addr"`

	// LogLevel is the stderr structured-logging level: debug, info, warn,
	// or error.
	LogLevel string `koanf:"log-level"`
}

// DefaultConfig returns a Config matching the CLI flag table's documented
// defaults.
func DefaultConfig() *Config {
	return &Config{
		Controller:        "localhost",
		Port:              6653,
		Loops:             16,
		MSPerTest:         1000,
		MACAddresses:      100000,
		Throughput:        false,
		Warmup:            1,
		Cooldown:          0,
		DelayMS:           0,
		SwitchAddDelay:    0,
		SwitchesPerThread: 1,
		DelayPerThread:    time.Millisecond,
		TotalThreads:      1,
		LearnDstMACs:      true,
		MetricsAddr:       "",
		LogLevel:          "info",
	}
}

// envPrefix is the environment variable prefix for cbench configuration.
// Variables are named CBENCH_<FLAG_NAME>, e.g. CBENCH_TOTAL-THREADS is
// normalized to CBENCH_TOTAL_THREADS (env vars cannot contain hyphens).
const envPrefix = "CBENCH_"

// Load builds a Config by layering, in increasing priority: built-in
// defaults, an optional YAML file at configPath (skipped if empty),
// CBENCH_-prefixed environment variables, then fs's parsed flags.
// fs must already have had Parse called.
func Load(configPath string, fs *flag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	// Only options given on the command line override the lower layers. A
	// long name and its shorthand share one variable (and so one flag.Value),
	// so setting either spelling carries both over.
	given := make(map[flag.Value]bool)
	fs.Visit(func(f *flag.Flag) { given[f.Value] = true })
	setFlags := flag.NewFlagSet(fs.Name(), flag.ContinueOnError)
	fs.VisitAll(func(f *flag.Flag) {
		if given[f.Value] {
			setFlags.Var(f.Value, f.Name, f.Usage)
		}
	})
	if err := k.Load(basicflag.Provider(setFlags, "."), nil); err != nil {
		return nil, fmt.Errorf("load flag overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper transforms CBENCH_TOTAL_THREADS -> total-threads.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", "-")
}

// loadDefaults marshals defaults into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, d *Config) error {
	defaultMap := map[string]any{
		"controller":          d.Controller,
		"port":                d.Port,
		"loops":               d.Loops,
		"ms-per-test":         d.MSPerTest,
		"mac-addresses":       d.MACAddresses,
		"throughput":          d.Throughput,
		"warmup":              d.Warmup,
		"cooldown":            d.Cooldown,
		"delay":               d.DelayMS,
		"switch-add-delay":    d.SwitchAddDelay.String(),
		"switches-per-thread": d.SwitchesPerThread,
		"delay-per-thread":    d.DelayPerThread.String(),
		"total-threads":       d.TotalThreads,
		"learn-dst-macs":      d.LearnDstMACs,
		"debug":               d.Debug,
		"debug-threads":       d.DebugThreads,
		"metrics-addr":        d.MetricsAddr,
		"log-level":           d.LogLevel,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// Validation errors.
var (
	ErrEmptyController      = errors.New("controller must not be empty")
	ErrInvalidPort          = errors.New("port must be nonzero")
	ErrInvalidLoops         = errors.New("loops must be >= 1")
	ErrInvalidMSPerTest     = errors.New("ms-per-test must be >= 1")
	ErrInvalidMACAddresses  = errors.New("mac-addresses must be >= 1")
	ErrInvalidSwitchesPer   = errors.New("switches-per-thread must be >= 1")
	ErrInvalidTotalThreads  = errors.New("total-threads must be >= 1")
	ErrWarmupCooldownTooBig = errors.New("warmup + cooldown must be < loops")
)

// Validate checks cfg for logical errors, returning the first one found.
func Validate(cfg *Config) error {
	if cfg.Controller == "" {
		return ErrEmptyController
	}
	if cfg.Port == 0 {
		return ErrInvalidPort
	}
	if cfg.Loops < 1 {
		return ErrInvalidLoops
	}
	if cfg.MSPerTest < 1 {
		return ErrInvalidMSPerTest
	}
	if cfg.MACAddresses < 1 {
		return ErrInvalidMACAddresses
	}
	if cfg.SwitchesPerThread < 1 {
		return ErrInvalidSwitchesPer
	}
	if cfg.TotalThreads < 1 {
		return ErrInvalidTotalThreads
	}
	if cfg.Warmup+cfg.Cooldown >= cfg.Loops {
		return ErrWarmupCooldownTooBig
	}
	return nil
}

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
