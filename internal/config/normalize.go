package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeArrange()
	c.normalizeDevices()
	c.normalizeNotify()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		c.Paths.WatchDir = defaultDesktopDir()
	}
	if c.Paths.WatchDir, err = expandPath(strings.TrimSpace(c.Paths.WatchDir)); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeArrange() {
	c.Arrange.FallbackFolder = strings.TrimSpace(c.Arrange.FallbackFolder)
	if c.Arrange.FallbackFolder == "" {
		c.Arrange.FallbackFolder = defaultFallbackFolder
	}
	c.Arrange.OnConflict = strings.ToLower(strings.TrimSpace(c.Arrange.OnConflict))
	c.Arrange.OnConflict = strings.ReplaceAll(c.Arrange.OnConflict, "-", "_")
	if c.Arrange.OnConflict == "" {
		c.Arrange.OnConflict = ConflictReplace
	}
	if c.Arrange.StablePolls < 0 {
		c.Arrange.StablePolls = 0
	}
	suffixes := make([]string, 0, len(c.Arrange.IgnoreSuffixes))
	seen := make(map[string]struct{}, len(c.Arrange.IgnoreSuffixes))
	for _, suffix := range c.Arrange.IgnoreSuffixes {
		normalized := strings.ToLower(strings.TrimSpace(suffix))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		suffixes = append(suffixes, normalized)
	}
	c.Arrange.IgnoreSuffixes = suffixes
}

func (c *Config) normalizeDevices() {
	buses := make([]string, 0, len(c.Devices.Buses))
	for _, bus := range c.Devices.Buses {
		if normalized := strings.ToLower(strings.TrimSpace(bus)); normalized != "" {
			buses = append(buses, normalized)
		}
	}
	if len(buses) == 0 {
		buses = []string{"usb"}
	}
	c.Devices.Buses = buses

	aliases := make(map[string]string, len(c.Devices.Aliases))
	for key, name := range c.Devices.Aliases {
		key, name = strings.TrimSpace(key), strings.TrimSpace(name)
		if key == "" || name == "" {
			continue
		}
		aliases[key] = name
	}
	c.Devices.Aliases = aliases
}

func (c *Config) normalizeNotify() {
	c.Notify.NtfyTopic = strings.TrimSpace(c.Notify.NtfyTopic)
	if c.Notify.NtfyTopic == "" {
		if value, ok := os.LookupEnv("DESKDROP_NTFY_TOPIC"); ok {
			c.Notify.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notify.RequestTimeout <= 0 {
		c.Notify.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
