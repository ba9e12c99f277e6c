package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// RetentionTarget selects files in Dir whose names match Pattern. Paths in
// Exclude are never removed.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs deletes target files last modified more than retentionDays
// ago and returns how many were removed. retentionDays <= 0 keeps everything.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	removed := 0
	for _, target := range targets {
		for _, path := range target.expired(cutoff) {
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "failed to prune old log", "log_retention_failed",
					String(FieldPath, path),
					Error(err),
					String(FieldImpact, "the old log stays on disk"),
					String(FieldErrorHint, "check ownership of paths.log_dir"),
				)
				continue
			}
			removed++
			logger.Debug("pruned old log",
				String(FieldEventType, "log_pruned"),
				String(FieldPath, path),
			)
		}
	}
	return removed
}

func (t RetentionTarget) expired(cutoff time.Time) []string {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return nil
	}
	pattern := strings.TrimSpace(t.Pattern)
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}

	keep := make([]string, 0, len(t.Exclude))
	for _, path := range t.Exclude {
		if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil && path != "" {
			keep = append(keep, abs)
		}
	}

	var expired []string
	for _, match := range matches {
		abs, err := filepath.Abs(match)
		if err != nil || slices.Contains(keep, abs) {
			continue
		}
		info, err := os.Lstat(abs)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		expired = append(expired, abs)
	}
	return expired
}
