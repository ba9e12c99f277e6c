package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultLogDir           = "~/.local/share/deskdrop/logs"
	defaultStateDir         = "~/.local/state/deskdrop"
	defaultFallbackFolder   = "Other"
	defaultPollIntervalMS   = 500
	defaultMaxAttempts      = 1200
	defaultStablePolls      = 1
	defaultDisplaySeconds   = 6
	defaultRequestTimeout   = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30

	// ConflictReplace overwrites an existing file of the same name.
	ConflictReplace = "replace"
	// ConflictKeepBoth picks a numbered name next to the existing entry.
	ConflictKeepBoth = "keep_both"
)

var defaultIgnoreSuffixes = []string{".part", ".crdownload", ".tmp", ".download"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir: defaultDesktopDir(),
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Arrange: Arrange{
			FallbackFolder: defaultFallbackFolder,
			PollIntervalMS: defaultPollIntervalMS,
			MaxAttempts:    defaultMaxAttempts,
			StablePolls:    defaultStablePolls,
			OnConflict:     ConflictReplace,
			ScanOpenFiles:  true,
			IgnoreHidden:   true,
			IgnoreSuffixes: append([]string(nil), defaultIgnoreSuffixes...),
		},
		Devices: Devices{
			Enabled: true,
			Buses:   []string{"usb"},
		},
		Notify: Notify{
			Desktop:         true,
			DisplaySeconds:  defaultDisplaySeconds,
			OpenDestination: true,
			RequestTimeout:  defaultRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// defaultDesktopDir resolves the desktop the way xdg-user-dirs does:
// XDG_DESKTOP_DIR, then user-dirs.dirs, then ~/Desktop.
func defaultDesktopDir() string {
	if value := strings.TrimSpace(os.Getenv("XDG_DESKTOP_DIR")); value != "" {
		return value
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/Desktop"
	}
	configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	if dir := readUserDirs(filepath.Join(configHome, "user-dirs.dirs"), home); dir != "" {
		return dir
	}
	return filepath.Join(home, "Desktop")
}

func readUserDirs(path, home string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != "XDG_DESKTOP_DIR" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "\"")
		value = strings.ReplaceAll(value, "$HOME", home)
		return value
	}
	return ""
}
