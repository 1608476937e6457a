package testsupport

import (
	"path/filepath"
	"testing"

	"alertcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithSweepInterval overrides the sweep cadence on the test config.
func WithSweepInterval(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.SweepIntervalSeconds = seconds
	}
}

// WithStaleGrace overrides the stale-playing grace window on the test config.
func WithStaleGrace(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.StaleGraceSeconds = seconds
	}
}
