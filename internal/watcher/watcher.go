// Package watcher reports entries that appear directly inside the watched
// desktop folder.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"deskdrop/internal/config"
	"deskdrop/internal/logging"
)

// DefaultCooldown suppresses repeated create events for one path.
const DefaultCooldown = 2 * time.Second

const (
	// renamePairWindow bounds the gap between the two halves of an in-place
	// rename. inotify queues them back to back.
	renamePairWindow = 250 * time.Millisecond
	// emittedTTL is how long a reported path is remembered so that moving it
	// out of the folder is not mistaken for a user rename.
	emittedTTL = time.Hour
)

// Managed lists folder names inside the watch folder that deskdrop files
// entries into. Events for them are ignored.
type Managed struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewManaged returns a set seeded with names.
func NewManaged(names ...string) *Managed {
	m := &Managed{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		m.Add(name)
	}
	return m
}

// Add marks name as managed.
func (m *Managed) Add(name string) {
	if name == "" {
		return
	}
	m.mu.Lock()
	m.names[name] = struct{}{}
	m.mu.Unlock()
}

// Contains reports whether name is managed.
func (m *Managed) Contains(name string) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.names[name]
	return ok
}

// Names returns the managed folder names.
func (m *Managed) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.names))
	for name := range m.names {
		out = append(out, name)
	}
	return out
}

// Filter decides which new entries are reported.
type Filter struct {
	IgnoreHidden   bool
	IgnoreSuffixes []string
	Managed        *Managed
}

// NewFilter builds a Filter from the arrange settings.
func NewFilter(cfg *config.Config, managed *Managed) Filter {
	return Filter{
		IgnoreHidden:   cfg.Arrange.IgnoreHidden,
		IgnoreSuffixes: cfg.Arrange.IgnoreSuffixes,
		Managed:        managed,
	}
}

// Reason returns why name is skipped, or "" when it should be handled.
func (f Filter) Reason(name string) string {
	if name == "" || name == "." || name == ".." {
		return "invalid"
	}
	if f.IgnoreHidden && strings.HasPrefix(name, ".") {
		return "hidden"
	}
	lower := strings.ToLower(name)
	for _, suffix := range f.IgnoreSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return "partial download"
		}
	}
	// Office lock files.
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".~lock.") {
		return "lock file"
	}
	if f.Managed.Contains(name) {
		return "managed folder"
	}
	return ""
}

// Watcher emits absolute paths of entries created in one directory.
type Watcher struct {
	dir      string
	filter   Filter
	cooldown time.Duration
	logger   *slog.Logger

	fsw     *fsnotify.Watcher
	recent  map[string]time.Time
	emitted map[string]time.Time
	// renamedAt is set when an existing entry was renamed away and its new
	// name has not shown up yet.
	renamedAt time.Time
	now       func() time.Time
}

// New starts watching dir. The returned Watcher must be closed.
func New(dir string, filter Filter, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:      filepath.Clean(dir),
		filter:   filter,
		cooldown: DefaultCooldown,
		logger:   logging.NewComponentLogger(logger, "watcher"),
		fsw:      fsw,
		recent:   make(map[string]time.Time),
		emitted:  make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// SetCooldown overrides DefaultCooldown.
func (w *Watcher) SetCooldown(d time.Duration) {
	w.cooldown = d
}

// Run delivers created entries to handle until ctx is done or the watcher
// is closed. handle is called on the Run goroutine and should not block.
func (w *Watcher) Run(ctx context.Context, handle func(path string)) error {
	w.logger.Info("watching folder",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.String(logging.FieldPath, w.dir),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.accept(event); ok {
				handle(path)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logging.WarnWithContext(w.logger, "watch event queue overflowed", "watch_overflow",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "use 'deskdrop arrange <path>' for entries that were not moved"),
					logging.String(logging.FieldImpact, "some new entries may not be arranged"),
				)
				continue
			}
			logging.WarnWithContext(w.logger, "watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "new entries may be missed"),
			)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// accept reports whether event introduces a new entry. A rename inside the
// folder arrives as Rename for the old name then Create for the new one; that
// Create is dropped unless the old name was itself ignored, so a finished
// download renamed from "x.crdownload" to "x" is still reported.
func (w *Watcher) accept(event fsnotify.Event) (string, bool) {
	path := filepath.Clean(event.Name)
	if filepath.Dir(path) != w.dir {
		return "", false
	}
	now := w.now()
	renamedAt := w.renamedAt
	w.renamedAt = time.Time{}

	if event.Has(fsnotify.Rename) {
		w.noteRename(path, now)
		return "", false
	}
	if !event.Has(fsnotify.Create) {
		return "", false
	}
	if !renamedAt.IsZero() && now.Sub(renamedAt) < renamePairWindow {
		w.logger.Debug("entry renamed in place",
			logging.String(logging.FieldPath, path),
		)
		return "", false
	}
	name := filepath.Base(path)
	if reason := w.filter.Reason(name); reason != "" {
		w.logger.Debug("ignoring new entry",
			logging.String(logging.FieldPath, path),
			logging.String("reason", reason),
		)
		return "", false
	}

	for p, seen := range w.recent {
		if now.Sub(seen) >= w.cooldown {
			delete(w.recent, p)
		}
	}
	for p, seen := range w.emitted {
		if now.Sub(seen) >= emittedTTL {
			delete(w.emitted, p)
		}
	}
	if _, dup := w.recent[path]; dup {
		return "", false
	}
	w.recent[path] = now
	w.emitted[path] = now
	return path, true
}

// noteRename records that an entry left path. Paths this watcher reported
// earlier are being moved out by deskdrop and do not pair with a Create.
func (w *Watcher) noteRename(path string, now time.Time) {
	if _, ours := w.emitted[path]; ours {
		delete(w.emitted, path)
		return
	}
	if w.filter.Reason(filepath.Base(path)) != "" {
		return
	}
	w.renamedAt = now
}
