package settle_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"deskdrop/internal/settle"
	"deskdrop/internal/testsupport"
)

func fastOptions() settle.Options {
	return settle.Options{Interval: 2 * time.Millisecond, MaxAttempts: 50}
}

func TestWaitSettledFileImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	testsupport.WriteFile(t, path, 4096)

	report, err := settle.Wait(context.Background(), path, fastOptions())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if report.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", report.Attempts)
	}
	if report.Bytes != 4096 || report.Files != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestWaitStablePollsRequiresRepeat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	testsupport.WriteFile(t, path, 10)

	opts := fastOptions()
	opts.StablePolls = 1
	report, err := settle.Wait(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if report.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", report.Attempts)
	}
}

func TestWaitResetsWhileGrowing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "download.iso")
	testsupport.WriteFile(t, path, 10)

	var calls atomic.Int32
	grower := settle.ProberFunc(func(ctx context.Context, p string) (bool, error) {
		if calls.Add(1) <= 3 {
			f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0)
			if err != nil {
				return false, err
			}
			defer f.Close()
			_, err = f.Write([]byte("more"))
			return false, err
		}
		return false, nil
	})

	opts := fastOptions()
	opts.StablePolls = 1
	opts.Probers = []settle.Prober{grower}
	report, err := settle.Wait(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if report.Attempts != 5 {
		t.Fatalf("attempts = %d, want 5", report.Attempts)
	}
	if report.Bytes != 22 {
		t.Fatalf("bytes = %d, want 22", report.Bytes)
	}
}

func TestWaitTimesOutWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.bin")
	testsupport.WriteFile(t, path, 10)

	writer := flock.New(path)
	if err := writer.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer writer.Unlock()

	opts := fastOptions()
	opts.MaxAttempts = 3
	report, err := settle.Wait(context.Background(), path, opts)
	if !errors.Is(err, settle.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if report.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", report.Attempts)
	}
}

func TestWaitSettlesAfterUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.bin")
	testsupport.WriteFile(t, path, 10)

	writer := flock.New(path)
	if err := writer.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		writer.Unlock()
	}()

	opts := fastOptions()
	opts.MaxAttempts = 1000
	report, err := settle.Wait(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if report.Attempts < 2 {
		t.Fatalf("attempts = %d, expected at least one busy poll", report.Attempts)
	}
}

func TestWaitVanished(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.txt")
	if _, err := settle.Wait(context.Background(), path, fastOptions()); !errors.Is(err, settle.ErrVanished) {
		t.Fatalf("err = %v, want ErrVanished", err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.bin")
	testsupport.WriteFile(t, path, 10)
	writer := flock.New(path)
	if err := writer.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer writer.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	opts := fastOptions()
	opts.MaxAttempts = 100000
	if _, err := settle.Wait(ctx, path, opts); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestIsBusyDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "project")
	testsupport.WriteTree(t, root, 100, "a.txt", "nested/deeper/b.txt")
	if err := unix.Mkfifo(filepath.Join(root, "pipe"), 0o644); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}

	busy, err := settle.IsBusy(root)
	if err != nil || busy {
		t.Fatalf("IsBusy = %v, %v; want idle", busy, err)
	}

	writer := flock.New(filepath.Join(root, "nested", "deeper", "b.txt"))
	if err := writer.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer writer.Unlock()

	busy, err = settle.IsBusy(root)
	if err != nil || !busy {
		t.Fatalf("IsBusy = %v, %v; want busy", busy, err)
	}
}

func TestDirectorySnapshotCountsTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "photos")
	testsupport.WriteTree(t, root, 1000, "1.jpg", "2.jpg", "raw/3.cr2")

	report, err := settle.Wait(context.Background(), root, fastOptions())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if report.Files != 3 || report.Bytes != 3000 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestOpenFileProber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.txt")
	testsupport.WriteFile(t, path, 10)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	prober := settle.OpenFileProber{Self: -1}
	busy, err := prober.Busy(context.Background(), path)
	if err != nil {
		t.Fatalf("Busy: %v", err)
	}
	if !busy {
		t.Fatal("expected busy while the file is open")
	}
	f.Close()

	busy, err = prober.Busy(context.Background(), path)
	if err != nil {
		t.Fatalf("Busy: %v", err)
	}
	if busy {
		t.Fatal("expected idle after close")
	}
}
