// Package mover relocates a settled desktop entry into its destination
// folder.
package mover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"deskdrop/internal/config"
	"deskdrop/internal/fileutil"
)

var (
	// ErrSameLocation is returned when the destination folder is the entry itself.
	ErrSameLocation = errors.New("destination is the source itself")
	// ErrDestinationExists is returned when a folder of the same name already
	// exists in the destination and the policy does not allow a new name.
	ErrDestinationExists = errors.New("destination already exists")
)

// rename is swapped in tests to force the cross-device path.
var rename = os.Rename

// Policy decides what happens when the destination name is taken.
type Policy string

const (
	// Replace deletes an existing file of the same name first.
	Replace Policy = config.ConflictReplace
	// KeepBoth picks "name (n).ext" next to the existing entry.
	KeepBoth Policy = config.ConflictKeepBoth
)

// Result describes a completed move.
type Result struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	IsDir       bool   `json:"is_dir"`
	Bytes       int64  `json:"bytes"`
	CrossDevice bool   `json:"cross_device"`
	Replaced    bool   `json:"replaced,omitempty"`
}

// Move moves src into destDir, creating destDir when needed.
func Move(src, destDir string, policy Policy) (Result, error) {
	src = filepath.Clean(src)
	destDir = filepath.Clean(destDir)
	result := Result{Source: src}

	if src == destDir || strings.HasPrefix(destDir, src+string(filepath.Separator)) {
		return result, ErrSameLocation
	}

	info, err := os.Lstat(src)
	if err != nil {
		return result, fmt.Errorf("stat source: %w", err)
	}
	result.IsDir = info.IsDir()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return result, fmt.Errorf("create destination %s: %w", destDir, err)
	}

	target := filepath.Join(destDir, filepath.Base(src))
	if target == src {
		return result, ErrSameLocation
	}

	target, replaced, err := resolveTarget(target, result.IsDir, policy)
	if err != nil {
		return result, err
	}
	result.Target = target
	result.Replaced = replaced

	if result.IsDir {
		result.Bytes, _ = fileutil.TreeSize(src)
	} else {
		result.Bytes = info.Size()
	}

	err = rename(src, target)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return result, fmt.Errorf("rename %s: %w", src, err)
	}

	result.CrossDevice = true
	if result.IsDir {
		if result.Bytes, err = fileutil.CopyTree(src, target); err != nil {
			return result, err
		}
		if err := os.RemoveAll(src); err != nil {
			return result, fmt.Errorf("remove source after copy: %w", err)
		}
		return result, nil
	}
	if result.Bytes, err = fileutil.CopyFileVerified(src, target); err != nil {
		return result, fmt.Errorf("copy %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return result, fmt.Errorf("remove source after copy: %w", err)
	}
	return result, nil
}

// resolveTarget applies policy to a target name that may already exist.
func resolveTarget(target string, isDir bool, policy Policy) (string, bool, error) {
	existing, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return target, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("stat destination: %w", err)
	}

	switch policy {
	case KeepBoth:
		return UniquePath(target, isDir || existing.IsDir()), false, nil
	default:
		if isDir || existing.IsDir() {
			return "", false, fmt.Errorf("%w: %s", ErrDestinationExists, target)
		}
		if err := os.Remove(target); err != nil {
			return "", false, fmt.Errorf("replace %s: %w", target, err)
		}
		return target, true, nil
	}
}

// UniquePath returns path when nothing exists there, otherwise the first free
// "name (n).ext" variant. Folder names are numbered as a whole.
func UniquePath(path string, isDir bool) string {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if isDir || ext == base {
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}
