package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"deskdrop/internal/config"
	"deskdrop/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if CheckDirectoryAccess("test", " ").Passed {
		t.Fatal("expected failure for unset path")
	}
}

func TestCheckNtfy_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/deskdrop")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckNtfy_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if CheckNtfy(context.Background(), srv.URL+"/deskdrop").Passed {
		t.Fatal("expected failure for forbidden topic")
	}
}

func TestCheckNtfy_MissingTopic(t *testing.T) {
	if CheckNtfy(context.Background(), "").Passed {
		t.Fatal("expected failure for missing topic")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	// Watch folder + state directory only
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_NotifySendMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	cfg.Notify.Desktop = true
	t.Setenv("PATH", t.TempDir())

	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "notify-send" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_NotifySendStubbed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("notify-send", "xdg-open"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	cfg.Notify.Desktop = true
	cfg.Notify.OpenDestination = true

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestCheckSystemDeps_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Desktop = false
	cfg.Notify.OpenDestination = false
	if got := CheckSystemDeps(&cfg); len(got) != 0 {
		t.Fatalf("expected no requirements, got %+v", got)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: " "},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Path != present || results[0].Detail != "" {
		t.Fatalf("unexpected status for present binary: %+v", results[0])
	}
	if results[1].Available || results[1].Detail == "" || results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected status for missing binary: %+v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for unset command: %+v", results[2])
	}
}
