package logs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// maxChunk bounds how much of the file a single Tail call reads.
const maxChunk = 4 << 20

// TailOptions controls a Tail call. A negative Offset returns the last Limit
// lines.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// CurrentLogPath resolves the deskdrop.log pointer inside logDir to the log
// of the current daemon run.
func CurrentLogPath(logDir string) string {
	pointer := filepath.Join(logDir, "deskdrop.log")
	if resolved, err := filepath.EvalSymlinks(pointer); err == nil {
		return resolved
	}
	return pointer
}

// Tail reads complete lines from path. A missing file yields no lines.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	if opts.Offset < 0 {
		lines, offset, err := lastLines(path, info.Size(), opts.Limit)
		if err != nil || len(lines) > 0 || !opts.Follow {
			return TailResult{Lines: lines, Offset: offset}, err
		}
		return follow(ctx, path, offset, opts.Wait)
	}

	offset := opts.Offset
	if offset > info.Size() {
		// Truncated or rotated; start over.
		offset = 0
	}
	lines, next, err := readFrom(path, offset)
	if err != nil || len(lines) > 0 || !opts.Follow {
		return TailResult{Lines: lines, Offset: next}, err
	}
	return follow(ctx, path, next, opts.Wait)
}

func lastLines(path string, size int64, limit int) ([]string, int64, error) {
	if limit <= 0 {
		return nil, size, nil
	}
	start := max(size-maxChunk, 0)
	data, err := readRange(path, start, size)
	if err != nil {
		return nil, 0, err
	}
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, start, nil
	}
	complete := data[:end]
	lines := splitLines(complete)
	if start > 0 && len(lines) > 0 {
		// The first line of a window that does not start at 0 may be cut.
		lines = lines[1:]
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, start + int64(end) + 1, nil
}

func readFrom(path string, offset int64) ([]string, int64, error) {
	data, err := readRange(path, offset, offset+maxChunk)
	if err != nil {
		return nil, offset, err
	}
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, offset, nil
	}
	return splitLines(data[:end]), offset + int64(end) + 1, nil
}

func readRange(path string, start, end int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.NewSectionReader(file, start, end-start))
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return data, nil
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{""}
	}
	parts := bytes.Split(data, []byte{'\n'})
	lines := make([]string, len(parts))
	for i, part := range parts {
		lines[i] = string(bytes.TrimSuffix(part, []byte{'\r'}))
	}
	return lines
}

// follow blocks until path grows past offset, wait elapses or ctx is done.
func follow(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	result := TailResult{Offset: offset}
	if wait <= 0 {
		return result, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return result, fmt.Errorf("create log watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(path); err != nil {
		return result, fmt.Errorf("watch log file: %w", err)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		// Re-read after arming the watcher so a write in between is not lost.
		lines, next, err := readFrom(path, offset)
		if err != nil || len(lines) > 0 {
			return TailResult{Lines: lines, Offset: next}, err
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-timer.C:
			return result, nil
		case err := <-fsw.Errors:
			return result, fmt.Errorf("watch log file: %w", err)
		case event, ok := <-fsw.Events:
			if !ok {
				return result, nil
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				return result, nil
			}
		}
	}
}
