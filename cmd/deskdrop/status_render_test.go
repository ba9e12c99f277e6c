package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"deskdrop/internal/daemonctl"
	"deskdrop/internal/history"
	"deskdrop/internal/ipc"
	"deskdrop/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected no colour for non-file writers")
	}
}

func TestRenderStatusRunning(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := daemonctl.Snapshot{
		Status: &ipc.StatusResponse{
			Running:        true,
			Paused:         true,
			StartedAt:      now.Add(-2 * time.Hour),
			PID:            4242,
			WatchDir:       "/home/u/Desktop",
			Destination:    "/home/u/Desktop/KINGSTON",
			Device:         "KINGSTON",
			DeviceCount:    1,
			MonitorRunning: true,
			History: history.Summary{
				Moved:     3,
				Failed:    1,
				Bytes:     3 << 20,
				LastMoved: now.Add(-5 * time.Minute),
			},
		},
		Checks: []preflight.Result{
			{Name: "Watch folder", Passed: true, Detail: "/home/u/Desktop"},
			{Name: "notify-send", Passed: false, Detail: "not found in PATH"},
		},
	}

	out := strings.Join(renderStatus(snapshot, false, now), "\n")
	for _, want := range []string{
		"[OK] Running (pid 4242, up 2 hours)",
		"[WARN] Paused",
		"1 (latest: KINGSTON)",
		"/home/u/Desktop/KINGSTON",
		"[ERROR] not found in PATH",
		"3 (3.0 MiB)",
		"Failed:",
		"[WARN] 1",
		"5 minutes ago",
	} {
		requireContains(t, out, want)
	}
}

func TestRenderStatusOffline(t *testing.T) {
	snapshot := daemonctl.Snapshot{
		Status: &ipc.StatusResponse{WatchDir: "/home/u/Desktop", HistoryError: "database is locked"},
	}
	out := strings.Join(renderStatus(snapshot, false, time.Now()), "\n")
	requireContains(t, out, "[WARN] Not running")
	requireContains(t, out, "[INFO] None")
	requireContains(t, out, "[ERROR] database is locked")
	if strings.Contains(out, "Drive monitor") {
		t.Fatalf("offline status should not describe the monitor:\n%s", out)
	}
}

func TestRenderHistoryTable(t *testing.T) {
	now := time.Now()
	out := renderHistoryTable([]history.Entry{
		{ID: 2, Source: "/d/notes.txt", Status: history.StatusFailed, Error: "permission denied", CreatedAt: now},
		{ID: 1, Source: "/d/a.zip", Target: "/d/USB/a.zip", Status: history.StatusMoved, Bytes: 1536, CreatedAt: now.Add(-time.Hour)},
	}, now)
	for _, want := range []string{"notes.txt", "permission denied", "USB/a.zip", "1.5 KiB", "1 hour ago"} {
		requireContains(t, out, want)
	}
}
