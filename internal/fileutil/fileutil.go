// Package fileutil copies files and directory trees for moves that cross
// filesystems.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// hashFile returns the SHA256 digest and length of the file at path.
var hashFile = func(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, n, err
	}
	return h.Sum(nil), n, nil
}

// CopyFileVerified streams src to dst, then reads dst back from disk and
// checks its SHA256 and size against the source before applying the source
// permissions and modification time. dst must not exist. It is removed again
// on any failure. The number of bytes copied is returned.
func CopyFileVerified(src, dst string) (int64, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		return 0, err
	}
	fail := func(err error) (int64, error) {
		_ = out.Close()
		_ = os.Remove(dst)
		return 0, err
	}

	srcHasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		return fail(err)
	}
	if err := out.Sync(); err != nil {
		return fail(fmt.Errorf("sync %s: %w", dst, err))
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	dstSum, dstSize, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("read back %s: %w", dst, err)
	}
	if dstSize != written || !bytes.Equal(srcHasher.Sum(nil), dstSum) {
		_ = os.Remove(dst)
		return 0, fmt.Errorf("copy hash mismatch: %s differs from source", dst)
	}

	_ = os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime())
	return written, nil
}

// CopyTree recreates the directory src at dst, copying regular files with
// CopyFileVerified and recreating symlinks. dst must not exist. On failure
// the partial copy is removed. The total of regular file bytes is returned.
func CopyTree(src, dst string) (int64, error) {
	if _, err := os.Lstat(dst); err == nil {
		return 0, fmt.Errorf("copy tree: %w: %s", fs.ErrExist, dst)
	}

	var total int64
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.Mkdir(target, info.Mode().Perm()|0o700)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			n, err := CopyFileVerified(path, target)
			total += n
			return err
		default:
			// Sockets, devices and fifos have no content to carry over.
			return nil
		}
	})
	if err != nil {
		_ = os.RemoveAll(dst)
		return 0, fmt.Errorf("copy tree %s: %w", src, err)
	}

	// Directory mtimes change as children are created; restore them last.
	_ = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(src, path)
		_ = os.Chtimes(filepath.Join(dst, rel), info.ModTime(), info.ModTime())
		return nil
	})
	return total, nil
}

// TreeSize returns the total size of regular files under path. For a file
// it returns the file size.
func TreeSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
