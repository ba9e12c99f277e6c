package arranger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"deskdrop/internal/config"
	"deskdrop/internal/devices"
	"deskdrop/internal/history"
	"deskdrop/internal/logging"
	"deskdrop/internal/mover"
	"deskdrop/internal/notifications"
	"deskdrop/internal/opener"
	"deskdrop/internal/settle"
	"deskdrop/internal/watcher"
)

var (
	// ErrNotFound is returned when the entry is neither a file nor a folder.
	ErrNotFound = errors.New("entry not found")
	// ErrInFlight is returned when the entry is already being arranged.
	ErrInFlight = errors.New("entry is already being arranged")
)

// Tracker exposes the connected-drive state.
type Tracker interface {
	Current() (devices.Device, bool)
	Count() int
}

// Recorder persists arrangement outcomes.
type Recorder interface {
	Record(ctx context.Context, entry history.Entry) (int64, error)
}

// WaitFunc waits for a path to settle.
type WaitFunc func(ctx context.Context, path string, opts settle.Options) (settle.Report, error)

// Deps are the collaborators of an Arranger. Nil fields fall back to no-ops.
type Deps struct {
	Tracker  Tracker
	Notifier notifications.Service
	Opener   opener.Opener
	History  Recorder
	Managed  *watcher.Managed
	Wait     WaitFunc
}

// Outcome describes one finished arrangement.
type Outcome struct {
	CorrelationID string         `json:"correlation_id"`
	Source        string         `json:"source"`
	Destination   Destination    `json:"destination"`
	Status        history.Status `json:"status"`
	Result        mover.Result   `json:"result"`
	Wait          time.Duration  `json:"wait"`
	Error         string         `json:"error,omitempty"`
}

// Stats reports arranger counters.
type Stats struct {
	Paused     bool      `json:"paused"`
	InFlight   []string  `json:"in_flight,omitempty"`
	Moved      int       `json:"moved"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	LastTarget string    `json:"last_target,omitempty"`
	LastAt     time.Time `json:"last_at,omitempty"`
}

// Arranger moves settled desktop entries into drive-named folders.
type Arranger struct {
	watchDir string
	fallback string
	policy   mover.Policy
	settle   settle.Options
	display  time.Duration
	logger   *slog.Logger

	tracker  Tracker
	notifier notifications.Service
	opener   opener.Opener
	history  Recorder
	managed  *watcher.Managed
	wait     WaitFunc

	mu       sync.Mutex
	paused   bool
	inFlight map[string]struct{}
	stats    Stats
	wg       sync.WaitGroup
}

// New builds an Arranger from cfg.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Arranger {
	a := &Arranger{
		watchDir: cfg.Paths.WatchDir,
		fallback: cfg.Arrange.FallbackFolder,
		policy:   mover.Policy(cfg.Arrange.OnConflict),
		settle: settle.Options{
			Interval:    cfg.PollInterval(),
			MaxAttempts: cfg.Arrange.MaxAttempts,
			StablePolls: cfg.Arrange.StablePolls,
		},
		display:  cfg.DisplayDuration(),
		logger:   logging.NewComponentLogger(logger, "arranger"),
		tracker:  deps.Tracker,
		notifier: deps.Notifier,
		opener:   deps.Opener,
		history:  deps.History,
		managed:  deps.Managed,
		wait:     deps.Wait,
		inFlight: make(map[string]struct{}),
	}
	if cfg.Arrange.ScanOpenFiles {
		a.settle.Probers = []settle.Prober{settle.LockProber{}, settle.OpenFileProber{}}
	}
	if a.notifier == nil {
		a.notifier = notifications.NewNop()
	}
	if a.opener == nil {
		a.opener = opener.Nop{}
	}
	if a.wait == nil {
		a.wait = settle.Wait
	}
	if a.managed != nil {
		a.managed.Add(a.fallback)
	}
	return a
}

// Handle arranges path in the background. It returns false when the
// arranger is paused or path is already being arranged.
func (a *Arranger) Handle(ctx context.Context, path string) bool {
	path = filepath.Clean(path)

	a.mu.Lock()
	if a.paused {
		a.mu.Unlock()
		a.logger.Debug("paused; ignoring new entry", logging.String(logging.FieldPath, path))
		return false
	}
	if _, busy := a.inFlight[path]; busy {
		a.mu.Unlock()
		return false
	}
	a.inFlight[path] = struct{}{}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		defer a.release(path)

		outcome, err := a.arrange(ctx, path)
		if err != nil || outcome.Status != history.StatusMoved {
			return
		}
		// The entry stays in flight while its notification is on screen.
		a.hold(ctx)
	}()
	return true
}

// Arrange runs the pipeline for path and returns when it is done. The
// returned error is nil only for a successful move. It fails with
// ErrInFlight while Handle is still working on the same path.
func (a *Arranger) Arrange(ctx context.Context, path string) (Outcome, error) {
	path = filepath.Clean(path)
	if !a.reserve(path) {
		return Outcome{Source: path, Status: history.StatusSkipped, Error: ErrInFlight.Error()},
			fmt.Errorf("%w: %s", ErrInFlight, path)
	}
	defer a.release(path)
	return a.arrange(ctx, path)
}

func (a *Arranger) arrange(ctx context.Context, path string) (Outcome, error) {
	outcome := Outcome{CorrelationID: uuid.NewString(), Source: path}
	ctx = logging.WithCorrelationID(ctx, outcome.CorrelationID)
	ctx = logging.WithPath(ctx, path)
	logger := logging.WithContext(ctx, a.logger)
	created := time.Now()

	info, err := os.Stat(path)
	if err != nil || (!info.IsDir() && !info.Mode().IsRegular()) {
		logger.Debug("entry is not a file or folder; ignoring", logging.Error(err))
		outcome.Status = history.StatusSkipped
		outcome.Error = ErrNotFound.Error()
		return outcome, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	logger.Info("new entry detected",
		logging.String(logging.FieldEventType, "entry_detected"),
		logging.Bool("is_dir", info.IsDir()),
	)

	report, err := a.wait(ctx, path, a.settle)
	outcome.Wait = report.Elapsed
	if err != nil {
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		outcome.Status = history.StatusSkipped
		outcome.Error = err.Error()
		if errors.Is(err, settle.ErrVanished) {
			logger.Info("entry disappeared before it settled",
				logging.String(logging.FieldEventType, "entry_vanished"),
			)
		} else {
			logging.WarnWithContext(logger, "entry never settled; leaving it in place", "settle_timeout",
				logging.Error(err),
				logging.Int("attempts", report.Attempts),
				logging.String(logging.FieldErrorHint, "raise arrange.max_attempts or run 'deskdrop arrange <path>' once it is complete"),
				logging.String(logging.FieldImpact, "entry stays on the desktop"),
			)
		}
		a.finish(ctx, logger, outcome, created, info.IsDir())
		return outcome, err
	}

	dest := a.Destination()
	outcome.Destination = dest
	logger = logger.With(logging.String(logging.FieldDevice, dest.Folder))
	logger.Debug("entry settled",
		logging.Int("attempts", report.Attempts),
		logging.Duration("waited", report.Elapsed),
		logging.String("destination", dest.Dir),
	)

	if err := a.notifier.NotifyMoveStarted(ctx, path, dest.Dir); err != nil {
		a.warnNotify(logger, err)
	}

	result, moveErr := mover.Move(path, dest.Dir, a.policy)
	outcome.Result = result

	switch {
	case errors.Is(moveErr, mover.ErrSameLocation):
		logger.Info("entry is its own destination; leaving it in place",
			logging.String(logging.FieldEventType, "entry_skipped"),
		)
		outcome.Status = history.StatusSkipped
		outcome.Error = moveErr.Error()
		if err := a.notifier.NotifyMoveFailed(ctx, path, moveErr); err != nil {
			a.warnNotify(logger, err)
		}
		a.finish(ctx, logger, outcome, created, info.IsDir())
		return outcome, moveErr
	case moveErr != nil:
		outcome.Status = history.StatusFailed
		outcome.Error = moveErr.Error()
		logging.ErrorWithContext(logger, "move failed", "move_failed",
			logging.Error(moveErr),
			logging.String("destination", dest.Dir),
			logging.String(logging.FieldErrorHint, "check permissions and free space in the destination, or set arrange.on_conflict = \"keep_both\""),
		)
		if err := a.notifier.NotifyMoveFailed(ctx, path, moveErr); err != nil {
			a.warnNotify(logger, err)
		}
	default:
		outcome.Status = history.StatusMoved
		logger.Info("entry moved",
			logging.String(logging.FieldEventType, "entry_moved"),
			logging.String("target", result.Target),
			logging.Int64("bytes", result.Bytes),
			logging.Bool("cross_device", result.CrossDevice),
			logging.Bool("replaced", result.Replaced),
		)
		if err := a.notifier.NotifyMoveCompleted(ctx, result); err != nil {
			a.warnNotify(logger, err)
		}
	}

	if err := a.opener.Open(dest.Dir); err != nil {
		logging.WarnWithContext(logger, "could not open destination folder", "open_failed",
			logging.Error(err),
			logging.String("destination", dest.Dir),
			logging.String(logging.FieldErrorHint, "install xdg-utils or set notify.open_destination = false"),
			logging.String(logging.FieldImpact, "destination folder not shown"),
		)
	}

	a.finish(ctx, logger, outcome, created, info.IsDir())
	if moveErr != nil {
		return outcome, moveErr
	}
	return outcome, nil
}

// Pause stops Handle from starting new arrangements.
func (a *Arranger) Pause() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	changed := !a.paused
	a.paused = true
	return changed
}

// Resume lets Handle start arrangements again.
func (a *Arranger) Resume() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	changed := a.paused
	a.paused = false
	return changed
}

// Paused reports whether the arranger is paused.
func (a *Arranger) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

// Wait blocks until background arrangements have finished.
func (a *Arranger) Wait() {
	a.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (a *Arranger) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	stats := a.stats
	stats.Paused = a.paused
	stats.InFlight = make([]string, 0, len(a.inFlight))
	for path := range a.inFlight {
		stats.InFlight = append(stats.InFlight, path)
	}
	return stats
}

func (a *Arranger) reserve(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[path]; busy {
		return false
	}
	a.inFlight[path] = struct{}{}
	return true
}

func (a *Arranger) release(path string) {
	a.mu.Lock()
	delete(a.inFlight, path)
	a.mu.Unlock()
}

func (a *Arranger) hold(ctx context.Context) {
	if a.display <= 0 {
		return
	}
	timer := time.NewTimer(a.display)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (a *Arranger) finish(ctx context.Context, logger *slog.Logger, outcome Outcome, created time.Time, isDir bool) {
	now := time.Now()
	a.mu.Lock()
	switch outcome.Status {
	case history.StatusMoved:
		a.stats.Moved++
		a.stats.LastTarget = outcome.Result.Target
		a.stats.LastAt = now
	case history.StatusFailed:
		a.stats.Failed++
	case history.StatusSkipped:
		a.stats.Skipped++
	}
	a.mu.Unlock()

	if a.history == nil {
		return
	}
	entry := history.Entry{
		CorrelationID: outcome.CorrelationID,
		Source:        outcome.Source,
		Target:        outcome.Result.Target,
		Device:        outcome.Destination.Device,
		IsDir:         isDir,
		Bytes:         outcome.Result.Bytes,
		CrossDevice:   outcome.Result.CrossDevice,
		Wait:          outcome.Wait,
		Status:        outcome.Status,
		Error:         outcome.Error,
		CreatedAt:     created,
		FinishedAt:    now,
	}
	// Record even when the arrangement context is cancelled mid-shutdown.
	if _, err := a.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(logger, "failed to record move history", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
			logging.String(logging.FieldImpact, "entry missing from 'deskdrop history'"),
		)
	}
}

func (a *Arranger) warnNotify(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run 'deskdrop test-notify' to check notification settings"),
		logging.String(logging.FieldImpact, "move not announced"),
	)
}
