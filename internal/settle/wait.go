package settle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrTimeout is returned when a path is still busy after MaxAttempts polls.
	ErrTimeout = errors.New("path did not settle")
	// ErrVanished is returned when the path disappears while waiting.
	ErrVanished = errors.New("path vanished before it settled")
)

// Options controls polling.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	// StablePolls is the number of consecutive idle polls with an unchanged
	// snapshot required after the first idle poll. Zero accepts the first.
	StablePolls int
	Probers     []Prober
}

// Report describes a settled path.
type Report struct {
	Attempts int
	Elapsed  time.Duration
	Bytes    int64
	Files    int
}

// Wait polls path until it is settled, ctx is done, the path vanishes, or
// MaxAttempts polls have been made.
func Wait(ctx context.Context, path string, opts Options) (Report, error) {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	var prober Prober = LockProber{}
	if len(opts.Probers) > 0 {
		prober = multiProber(opts.Probers)
	}

	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	var prev snapshot
	havePrev := false
	stable := 0

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return Report{Attempts: attempt - 1, Elapsed: time.Since(start)}, ctx.Err()
		case <-timer.C:
		}

		snap, err := takeSnapshot(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Report{Attempts: attempt, Elapsed: time.Since(start)}, fmt.Errorf("%w: %s", ErrVanished, path)
			}
			return Report{Attempts: attempt, Elapsed: time.Since(start)}, fmt.Errorf("inspect %s: %w", path, err)
		}

		busy, err := prober.Busy(ctx, path)
		if errors.Is(err, fs.ErrNotExist) {
			return Report{Attempts: attempt, Elapsed: time.Since(start)}, fmt.Errorf("%w: %s", ErrVanished, path)
		}
		if err != nil {
			busy = true
		}

		if busy {
			stable = 0
		} else {
			if havePrev && snap == prev {
				stable++
			} else {
				stable = 0
			}
			if stable >= opts.StablePolls {
				return Report{
					Attempts: attempt,
					Elapsed:  time.Since(start),
					Bytes:    snap.bytes,
					Files:    snap.files,
				}, nil
			}
		}
		prev, havePrev = snap, true

		if attempt >= opts.MaxAttempts {
			return Report{Attempts: attempt, Elapsed: time.Since(start)}, fmt.Errorf("%w after %d checks: %s", ErrTimeout, attempt, path)
		}
		timer.Reset(opts.Interval)
	}
}

type snapshot struct {
	bytes   int64
	files   int
	entries int
	modTime int64
}

func takeSnapshot(path string) (snapshot, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return snapshot{}, err
	}
	if !info.IsDir() {
		return snapshot{bytes: info.Size(), files: 1, entries: 1, modTime: info.ModTime().UnixNano()}, nil
	}

	var snap snapshot
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == path {
				return walkErr
			}
			// Entries removed mid-walk only change the snapshot.
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		snap.entries++
		if mt := info.ModTime().UnixNano(); mt > snap.modTime {
			snap.modTime = mt
		}
		if info.Mode().IsRegular() {
			snap.files++
			snap.bytes += info.Size()
		}
		return nil
	})
	return snap, err
}
