package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateArrange(); err != nil {
		return err
	}
	if err := c.validateDevices(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		return errors.New("paths.watch_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateArrange() error {
	if err := ensurePositiveMap(map[string]int{
		"arrange.poll_interval_ms": c.Arrange.PollIntervalMS,
		"arrange.max_attempts":     c.Arrange.MaxAttempts,
	}); err != nil {
		return err
	}
	folder := c.Arrange.FallbackFolder
	if folder == "" {
		return errors.New("arrange.fallback_folder must be set")
	}
	if folder == "." || folder == ".." || filepath.Base(folder) != folder || strings.ContainsAny(folder, `/\`) {
		return fmt.Errorf("arrange.fallback_folder %q must be a single folder name", folder)
	}
	switch c.Arrange.OnConflict {
	case ConflictReplace, ConflictKeepBoth:
	default:
		return fmt.Errorf("arrange.on_conflict %q must be %q or %q", c.Arrange.OnConflict, ConflictReplace, ConflictKeepBoth)
	}
	return nil
}

func (c *Config) validateDevices() error {
	for key, name := range c.Devices.Aliases {
		if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("devices.aliases[%q] %q must be a single folder name", key, name)
		}
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.DisplaySeconds < 0 {
		return errors.New("notify.display_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
