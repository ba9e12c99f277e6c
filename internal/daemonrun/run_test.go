package daemonrun

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "deskdrop-1.log")
	second := filepath.Join(dir, "deskdrop-2.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "deskdrop.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "deskdrop-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestEnsureCurrentLogPointerNoop(t *testing.T) {
	if err := ensureCurrentLogPointer("", "x"); err != nil {
		t.Fatal(err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskdrop.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file contains %q", data)
	}
}
