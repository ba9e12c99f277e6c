package fileutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o640); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(src, past, past); err != nil {
		t.Fatal(err)
	}

	n, err := CopyFileVerified(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(content)) {
		t.Fatalf("copied %d bytes, want %d", n, len(content))
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(past) {
		t.Fatalf("mtime = %v, want %v", info.ModTime(), past)
	}
}

func TestCopyFileVerifiedRejectsCorruptCopy(t *testing.T) {
	prev := hashFile
	hashFile = func(path string) ([]byte, int64, error) {
		sum, n, err := prev(path)
		if err == nil {
			sum[0] ^= 0xff
		}
		return sum, n, err
	}
	t.Cleanup(func() { hashFile = prev })

	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := CopyFileVerified(src, dst); err == nil {
		t.Fatal("expected hash mismatch")
	}
	if _, err := os.Stat(dst); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("corrupt copy should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must be untouched: %v", err)
	}
}

func TestHashFileMatchesContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	if err := os.WriteFile(a, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	sumA, n, err := hashFile(a)
	if err != nil {
		t.Fatal(err)
	}
	sumB, _, err := hashFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || string(sumA) != string(sumB) {
		t.Fatalf("n = %d, digests equal = %v", n, string(sumA) == string(sumB))
	}
	if err := os.WriteFile(b, []byte("diff"), 0o644); err != nil {
		t.Fatal(err)
	}
	sumB, _, _ = hashFile(b)
	if string(sumA) == string(sumB) {
		t.Fatal("different content should hash differently")
	}
}

func TestCopyFileVerifiedRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := CopyFileVerified(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("err = %v, want ErrExist", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "old" {
		t.Fatalf("existing file modified: %q", got)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyFileVerified(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyTree(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "album")
	if err := os.MkdirAll(filepath.Join(src, "raw", "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"cover.jpg":   "cover",
		"raw/001.cr2": "raw image",
	}
	for rel, body := range files {
		if err := os.WriteFile(filepath.Join(src, rel), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink("cover.jpg", filepath.Join(src, "link.jpg")); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "copy")
	total, err := CopyTree(src, dst)
	if err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	if total != int64(len("cover")+len("raw image")) {
		t.Fatalf("total = %d", total)
	}
	for rel, body := range files {
		got, err := os.ReadFile(filepath.Join(dst, rel))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if string(got) != body {
			t.Fatalf("%s = %q, want %q", rel, got, body)
		}
	}
	if info, err := os.Stat(filepath.Join(dst, "raw", "empty")); err != nil || !info.IsDir() {
		t.Fatalf("empty directory not copied: %v", err)
	}
	if link, err := os.Readlink(filepath.Join(dst, "link.jpg")); err != nil || link != "cover.jpg" {
		t.Fatalf("symlink = %q, %v", link, err)
	}

	size, err := TreeSize(dst)
	if err != nil {
		t.Fatal(err)
	}
	if size != total {
		t.Fatalf("TreeSize = %d, want %d", size, total)
	}
}

func TestCopyTreeRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	for _, d := range []string{src, dst} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := CopyTree(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("err = %v, want ErrExist", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("existing destination removed: %v", err)
	}
}
