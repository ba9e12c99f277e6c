package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"deskdrop/internal/arranger"
	"deskdrop/internal/config"
	"deskdrop/internal/devices"
	"deskdrop/internal/history"
	"deskdrop/internal/logging"
	"deskdrop/internal/notifications"
	"deskdrop/internal/opener"
	"deskdrop/internal/watcher"
)

// ErrAlreadyRunning is returned when another deskdrop daemon holds the lock.
var ErrAlreadyRunning = errors.New("another deskdrop daemon instance is already running")

// Options override collaborators; zero values select the real ones.
type Options struct {
	Notifier notifications.Service
	Opener   opener.Opener
	Lister   *devices.Lister
	LogPath  string
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *history.Store
	notifier notifications.Service
	logPath  string

	tracker  *devices.Tracker
	monitor  *devices.Monitor
	lister   *devices.Lister
	managed  *watcher.Managed
	arranger *arranger.Arranger

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	watch     *watcher.Watcher
	done      chan struct{}
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	StartedAt      time.Time
	WatchDir       string
	Destination    arranger.Destination
	DeviceCount    int
	MonitorRunning bool
	Arranger       arranger.Stats
	History        history.Summary
	HistoryError   string
	HistoryDBPath  string
	LockFilePath   string
	LogPath        string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *history.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and history store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	open := opts.Opener
	if open == nil {
		open = opener.New(cfg)
	}
	lister := opts.Lister
	if lister == nil {
		lister = devices.NewLister(cfg)
	}

	tracker := devices.NewTracker()
	managed := watcher.NewManaged()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		notifier: notifier,
		logPath:  opts.LogPath,
		tracker:  tracker,
		monitor:  devices.NewMonitor(cfg, tracker, logger),
		lister:   lister,
		managed:  managed,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.arranger = arranger.New(cfg, arranger.Deps{
		Tracker:  tracker,
		Notifier: notifier,
		Opener:   open,
		History:  store,
		Managed:  managed,
	}, logger)
	return d, nil
}

// Start acquires the daemon lock, starts drive tracking and begins watching
// the desktop folder.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	filter := watcher.NewFilter(d.cfg, d.managed)
	watch, err := watcher.New(d.cfg.Paths.WatchDir, filter, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start watcher: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.monitor.Start(runCtx); err != nil {
		_ = watch.Close()
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start device monitor: %w", err)
	}
	if d.cfg.Devices.SeedOnStart && d.monitor != nil {
		d.seedDevices(runCtx)
	}
	d.pruneHistory(runCtx)

	d.cancel = cancel
	d.watch = watch
	d.done = make(chan struct{})
	d.startedAt = time.Now()
	d.running.Store(true)

	go func(done chan struct{}) {
		defer close(done)
		err := watch.Run(runCtx, func(path string) {
			d.arranger.Handle(runCtx, path)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(d.logger, "desktop watcher stopped", "watch_stopped",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "restart the daemon"),
			)
		}
	}(d.done)

	d.logger.Info("deskdrop daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("watch_dir", d.cfg.Paths.WatchDir),
		logging.Bool("device_monitor", d.monitor.Running()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. In-flight
// arrangements are cancelled and awaited.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.watch != nil {
		_ = d.watch.Close()
		d.watch = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	d.monitor.Stop()
	d.arranger.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("deskdrop daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Pause stops new desktop entries from being arranged. It reports whether
// the state changed.
func (d *Daemon) Pause() bool {
	changed := d.arranger.Pause()
	if changed {
		d.logger.Info("arranging paused", logging.String(logging.FieldEventType, "arranging_paused"))
	}
	return changed
}

// Resume re-enables arranging. It reports whether the state changed.
func (d *Daemon) Resume() bool {
	changed := d.arranger.Resume()
	if changed {
		d.logger.Info("arranging resumed", logging.String(logging.FieldEventType, "arranging_resumed"))
	}
	return changed
}

// Arrange runs the arrangement pipeline for one path synchronously.
func (d *Daemon) Arrange(ctx context.Context, path string) (arranger.Outcome, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return arranger.Outcome{}, errors.New("path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return arranger.Outcome{}, fmt.Errorf("resolve path: %w", err)
	}
	return d.arranger.Arrange(ctx, absPath)
}

// History returns the most recent arrangement records.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Entry, error) {
	return d.store.Recent(ctx, limit)
}

// Devices lists the removable drives currently mounted.
func (d *Daemon) Devices(ctx context.Context) ([]devices.Device, error) {
	return d.lister.List(ctx)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if !d.cfg.Notify.Desktop && strings.TrimSpace(d.cfg.Notify.NtfyTopic) == "" {
		return false, "no notification backend configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:        d.running.Load(),
		WatchDir:       d.cfg.Paths.WatchDir,
		Destination:    d.arranger.Destination(),
		DeviceCount:    d.tracker.Count(),
		MonitorRunning: d.monitor.Running(),
		Arranger:       d.arranger.Stats(),
		HistoryDBPath:  d.store.Path(),
		LockFilePath:   d.lockPath,
		LogPath:        d.logPath,
	}
	if status.Running {
		status.StartedAt = startedAt
	}
	summary, err := d.store.Stats(ctx)
	if err != nil {
		status.HistoryError = err.Error()
	} else {
		status.History = summary
	}
	return status
}

func (d *Daemon) seedDevices(ctx context.Context) {
	devs, err := d.lister.List(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to list connected drives", "device_seed_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "drives connected before startup are not used as destinations"),
			logging.String(logging.FieldErrorHint, "reconnect the drive or disable devices.seed_on_start"),
		)
		return
	}
	d.monitor.Seed(devs)
	d.logger.Info("seeded connected drives",
		logging.String(logging.FieldEventType, "device_seeded"),
		logging.Int("count", len(devs)),
	)
}

func (d *Daemon) pruneHistory(ctx context.Context) {
	days := d.cfg.Logging.RetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := d.store.Prune(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to prune move history", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "history database keeps growing"),
		)
		return
	}
	if removed > 0 {
		d.logger.Info("pruned move history",
			logging.String(logging.FieldEventType, "history_pruned"),
			logging.Int64("removed", removed),
		)
	}
}
