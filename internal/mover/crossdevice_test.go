package mover

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"deskdrop/internal/testsupport"
)

// forceCrossDevice makes every rename fail the way it does between
// filesystems.
func forceCrossDevice(t *testing.T) {
	t.Helper()
	prev := rename
	rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: unix.EXDEV}
	}
	t.Cleanup(func() { rename = prev })
}

func TestMoveFileAcrossDevices(t *testing.T) {
	forceCrossDevice(t)
	desk := t.TempDir()
	src := filepath.Join(desk, "video.mkv")
	testsupport.WriteFile(t, src, 70*1024)
	dest := filepath.Join(desk, "KINGSTON")

	result, err := Move(src, dest, Replace)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !result.CrossDevice || result.IsDir || result.Bytes != 70*1024 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source still present: %v", err)
	}
	data, err := os.ReadFile(result.Target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if !bytes.Equal(data, bytes.Repeat([]byte{0x42}, 70*1024)) {
		t.Fatal("target content differs from source")
	}
}

func TestMoveDirectoryAcrossDevices(t *testing.T) {
	forceCrossDevice(t)
	desk := t.TempDir()
	src := filepath.Join(desk, "photos")
	testsupport.WriteTree(t, src, 10, "a.jpg", "2024/b.jpg", "2024/trip/c.jpg")
	dest := filepath.Join(desk, "STICK")

	result, err := Move(src, dest, KeepBoth)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !result.CrossDevice || !result.IsDir || result.Bytes != 30 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source tree still present: %v", err)
	}
	for _, rel := range []string{"a.jpg", "2024/b.jpg", "2024/trip/c.jpg"} {
		if _, err := os.Stat(filepath.Join(dest, "photos", rel)); err != nil {
			t.Fatalf("copied tree missing %s: %v", rel, err)
		}
	}
}

func TestMoveRenameErrorIsReturned(t *testing.T) {
	prev := rename
	rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: unix.EACCES}
	}
	t.Cleanup(func() { rename = prev })

	desk := t.TempDir()
	src := filepath.Join(desk, "notes.txt")
	testsupport.WriteFile(t, src, 4)

	result, err := Move(src, filepath.Join(desk, "Other"), Replace)
	if err == nil {
		t.Fatal("expected rename error")
	}
	if result.CrossDevice {
		t.Fatal("non-EXDEV failures must not fall back to copying")
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source must stay in place: %v", err)
	}
}
