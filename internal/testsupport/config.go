package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"deskdrop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in per-test temp directories. The watch
// directory is created; notifications, folder opening and udev are off so
// tests never touch the desktop session.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WatchDir = filepath.Join(base, "desktop")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Arrange.PollIntervalMS = 5
	cfgVal.Arrange.MaxAttempts = 200
	cfgVal.Arrange.ScanOpenFiles = false
	cfgVal.Devices.Enabled = false
	cfgVal.Notify.Desktop = false
	cfgVal.Notify.OpenDestination = false
	cfgVal.Notify.DisplaySeconds = 0

	if err := os.MkdirAll(cfgVal.Paths.WatchDir, 0o755); err != nil {
		t.Fatalf("mkdir watch dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithConflictPolicy overrides arrange.on_conflict.
func WithConflictPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Arrange.OnConflict = policy
	}
}

// WithFallbackFolder overrides arrange.fallback_folder.
func WithFallbackFolder(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Arrange.FallbackFolder = name
	}
}

// WithSettle overrides the settle polling parameters.
func WithSettle(intervalMS, maxAttempts, stablePolls int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Arrange.PollIntervalMS = intervalMS
		b.cfg.Arrange.MaxAttempts = maxAttempts
		b.cfg.Arrange.StablePolls = stablePolls
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, notify-send is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"notify-send"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
