package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"deskdrop/internal/config"
	"deskdrop/internal/history"
	"deskdrop/internal/ipc"
	"deskdrop/internal/preflight"
)

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls detached daemon launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// Launch starts a detached `deskdrop run` process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless it already answers on socketPath.
// It reports whether a new process was launched.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (bool, error) {
	if client, err := ipc.Dial(socketPath); err == nil {
		_ = client.Close()
		return false, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return false, err
	}
	client, err := WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return true, err
	}
	_ = client.Close()
	return true, nil
}

// Status queries the running daemon.
func Status(socketPath string) (*ipc.StatusResponse, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if IsDaemonUnavailable(err) {
			return nil, ErrDaemonNotRunning
		}
		return nil, err
	}
	defer client.Close()
	return client.Status()
}

// WaitForShutdown waits for daemon IPC to disappear or report not-running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := Status(socketPath)
		if errors.Is(err, ErrDaemonNotRunning) {
			return nil
		}
		if err == nil && !status.Running {
			lastErr = fmt.Errorf("daemon stopped but process still serving IPC")
		} else if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("daemon still running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// ReadPID returns the pid recorded in pidPath, or 0 when there is none.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %q", pidPath)
	}
	return pid, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid and
// socket files.
func ForceKillProcess(pidPath, socketPath string, fallbackPID int) (int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if socketPath != "" {
		_ = os.Remove(socketPath)
	}
	return pid, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// StopAndTerminate requests a daemon shutdown and force-kills the process if
// it is still alive after gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if IsDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if status, statusErr := client.Status(); statusErr == nil && status != nil {
		pid = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp != nil && resp.Stopped}

	if err := WaitForShutdown(socketPath, gracePeriod); err == nil {
		return result, nil
	}

	killedPID, killErr := ForceKillProcess(cfg.PIDPath(), socketPath, pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Snapshot combines daemon status with local readiness checks. When the
// daemon is offline, history figures are read from the database directly.
type Snapshot struct {
	Status *ipc.StatusResponse `json:"status"`
	Checks []preflight.Result  `json:"checks"`
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (Snapshot, error) {
	if cfg == nil {
		return Snapshot{}, errors.New("configuration not available")
	}

	status, err := Status(socketPath)
	if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return Snapshot{}, err
	}
	if status == nil {
		status = &ipc.StatusResponse{
			WatchDir:      cfg.Paths.WatchDir,
			HistoryDBPath: cfg.HistoryDBPath(),
			LockPath:      cfg.LockPath(),
		}
	}

	if !status.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if summary, sumErr := offlineSummary(queryCtx, cfg); sumErr == nil {
			status.History = summary
		} else {
			status.HistoryError = sumErr.Error()
		}
	}

	return Snapshot{Status: status, Checks: preflight.RunAll(ctx, cfg)}, nil
}

// OfflineHistory reads recent history directly from the database.
func OfflineHistory(ctx context.Context, cfg *config.Config, limit int) ([]history.Entry, error) {
	if _, err := os.Stat(cfg.HistoryDBPath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Recent(ctx, limit)
}

func offlineSummary(ctx context.Context, cfg *config.Config) (history.Summary, error) {
	if _, err := os.Stat(cfg.HistoryDBPath()); errors.Is(err, os.ErrNotExist) {
		return history.Summary{}, nil
	}
	store, err := history.Open(cfg)
	if err != nil {
		return history.Summary{}, err
	}
	defer store.Close()
	return store.Stats(ctx)
}

// IsDaemonUnavailable reports whether a dial error means nobody listens on
// the socket.
func IsDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
