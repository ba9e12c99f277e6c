package settle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/shirou/gopsutil/v3/process"
)

// Prober reports whether path is still in use.
type Prober interface {
	Busy(ctx context.Context, path string) (bool, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (bool, error)

func (f ProberFunc) Busy(ctx context.Context, path string) (bool, error) { return f(ctx, path) }

// LockProber treats a regular file as busy when it cannot be opened for
// reading or an exclusive flock cannot be taken on it. A directory is busy
// when anything below it is busy.
type LockProber struct{}

func (LockProber) Busy(ctx context.Context, path string) (bool, error) {
	return IsBusy(path)
}

// IsBusy applies the LockProber rules to path. It returns an error wrapping
// fs.ErrNotExist when path itself is missing.
func IsBusy(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return dirBusy(path)
	}
	return fileBusy(path, info)
}

func dirBusy(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		return true, nil
	}
	for _, entry := range entries {
		child := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			// Entry disappeared between listing and stat; the tree is changing.
			return true, nil
		}
		var busy bool
		if info.IsDir() {
			busy, err = dirBusy(child)
		} else {
			busy, err = fileBusy(child, info)
		}
		if err != nil || busy {
			return true, nil
		}
	}
	return false, nil
}

func fileBusy(path string, info fs.FileInfo) (bool, error) {
	// Symlinks, fifos and sockets are moved as they are; opening a fifo would block.
	if !info.Mode().IsRegular() {
		return false, nil
	}
	lock := flock.New(path, flock.SetFlag(os.O_RDONLY))
	locked, err := lock.TryLock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		return true, nil
	}
	if !locked {
		return true, nil
	}
	if err := lock.Unlock(); err != nil {
		return true, fmt.Errorf("release probe lock: %w", err)
	}
	return false, nil
}

// OpenFileProber treats a path as busy while another process holds it, or
// for directories anything inside it, open.
type OpenFileProber struct {
	// Self is excluded from the scan. Zero means the current process.
	Self int32
}

func (p OpenFileProber) Busy(ctx context.Context, path string) (bool, error) {
	self := p.Self
	if self == 0 {
		self = int32(os.Getpid())
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}
	prefix := strings.TrimRight(path, string(filepath.Separator)) + string(filepath.Separator)
	for _, proc := range procs {
		if proc.Pid == self {
			continue
		}
		files, err := proc.OpenFilesWithContext(ctx)
		if err != nil {
			// Processes of other users and short-lived ones cannot be inspected.
			continue
		}
		for _, file := range files {
			if file.Path == path || strings.HasPrefix(file.Path, prefix) {
				return true, nil
			}
		}
	}
	return false, nil
}

// multiProber is busy when any of its probers is.
type multiProber []Prober

func (m multiProber) Busy(ctx context.Context, path string) (bool, error) {
	for _, p := range m {
		busy, err := p.Busy(ctx, path)
		if err != nil {
			return true, err
		}
		if busy {
			return true, nil
		}
	}
	return false, nil
}
