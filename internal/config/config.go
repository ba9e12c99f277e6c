package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WatchDir string `toml:"watch_dir"`
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Arrange contains configuration for settling and moving new desktop entries.
type Arrange struct {
	FallbackFolder string   `toml:"fallback_folder"`
	PollIntervalMS int      `toml:"poll_interval_ms"`
	MaxAttempts    int      `toml:"max_attempts"`
	StablePolls    int      `toml:"stable_polls"`
	OnConflict     string   `toml:"on_conflict"`
	ScanOpenFiles  bool     `toml:"scan_open_files"`
	IgnoreHidden   bool     `toml:"ignore_hidden"`
	IgnoreSuffixes []string `toml:"ignore_suffixes"`
}

// Devices contains configuration for removable drive tracking.
type Devices struct {
	Enabled     bool              `toml:"enabled"`
	SeedOnStart bool              `toml:"seed_on_start"`
	Buses       []string          `toml:"buses"`
	Aliases     map[string]string `toml:"aliases"`
}

// Notify contains configuration for the move notification and folder opening.
type Notify struct {
	Desktop         bool   `toml:"desktop"`
	DisplaySeconds  int    `toml:"display_seconds"`
	OpenDestination bool   `toml:"open_destination"`
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for deskdrop.
//
// Configuration sections by subsystem:
//   - Paths: watched folder, log and state directories
//   - Arrange: settle polling, conflict policy, and ignore rules
//   - Devices: removable drive tracking via udev
//   - Notify: desktop/ntfy notifications and destination opening
//   - Logging: log format, level, and retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	Arrange Arrange `toml:"arrange"`
	Devices Devices `toml:"devices"`
	Notify  Notify  `toml:"notify"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/deskdrop/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("deskdrop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories. The watch folder
// is never created: a missing desktop is a configuration problem.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the delay between settle checks.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Arrange.PollIntervalMS) * time.Millisecond
}

// DisplayDuration returns how long a move notification stays up.
func (c *Config) DisplayDuration() time.Duration {
	return time.Duration(c.Notify.DisplaySeconds) * time.Second
}

// SettleTimeout is the longest a single path may take to settle.
func (c *Config) SettleTimeout() time.Duration {
	return c.PollInterval() * time.Duration(c.Arrange.MaxAttempts)
}

// HistoryDBPath returns the location of the move history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "deskdrop.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "deskdrop.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "deskdrop.pid")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
