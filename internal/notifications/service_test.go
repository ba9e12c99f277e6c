package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"deskdrop/internal/mover"
	"deskdrop/internal/notifications"
	"deskdrop/internal/testsupport"
)

func TestNewServiceReturnsNoopWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := notifications.NewService(cfg)
	if err := svc.NotifyMoveFailed(context.Background(), "/desk/a.txt", errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []capturedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func TestNtfyPublishesOutcomes(t *testing.T) {
	server, requests := newNtfyServer(t)
	cfg := testsupport.NewConfig(t)
	cfg.Notify.NtfyTopic = server.URL

	svc := notifications.NewService(cfg)
	ctx := context.Background()

	if err := svc.NotifyMoveStarted(ctx, "/desk/report.pdf", "/desk/KINGSTON"); err != nil {
		t.Fatalf("NotifyMoveStarted: %v", err)
	}
	if got := len(requests()); got != 0 {
		t.Fatalf("start should not be published to ntfy, got %d requests", got)
	}

	err := svc.NotifyMoveCompleted(ctx, mover.Result{
		Source: "/desk/report.pdf",
		Target: "/desk/KINGSTON/report.pdf",
		Bytes:  2048,
	})
	if err != nil {
		t.Fatalf("NotifyMoveCompleted: %v", err)
	}
	if err := svc.NotifyMoveFailed(ctx, "/desk/big.iso", errors.New("disk full")); err != nil {
		t.Fatalf("NotifyMoveFailed: %v", err)
	}

	got := requests()
	if len(got) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(got))
	}
	if got[0].title != "deskdrop - Moved" || got[0].body != "report.pdf (2.0 KiB) moved to /desk/KINGSTON" {
		t.Fatalf("unexpected completed payload: %+v", got[0])
	}
	if got[0].tags != "deskdrop,move,completed" || got[0].priority != "" {
		t.Fatalf("unexpected completed headers: %+v", got[0])
	}
	if got[1].title != "deskdrop - Move failed" || got[1].body != "big.iso: disk full" || got[1].priority != "high" {
		t.Fatalf("unexpected failure payload: %+v", got[1])
	}
}

func TestNtfyReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic blocked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notify.NtfyTopic = server.URL
	err := notifications.NewService(cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestDesktopReplacesMovingBubble(t *testing.T) {
	binDir := t.TempDir()
	logPath := filepath.Join(binDir, "calls.log")
	script := "#!/bin/sh\necho \"$@\" >> '" + logPath + "'\necho 42\n"
	if err := os.WriteFile(filepath.Join(binDir, "notify-send"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	cfg := testsupport.NewConfig(t)
	cfg.Notify.Desktop = true
	cfg.Notify.DisplaySeconds = 6
	svc := notifications.NewService(cfg)
	ctx := context.Background()

	if err := svc.NotifyMoveStarted(ctx, "/desk/a.txt", "/desk/Other"); err != nil {
		t.Fatalf("NotifyMoveStarted: %v", err)
	}
	if err := svc.NotifyMoveCompleted(ctx, mover.Result{Source: "/desk/a.txt", Target: "/desk/Other/a.txt"}); err != nil {
		t.Fatalf("NotifyMoveCompleted: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read calls: %v", err)
	}
	calls := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(calls) != 2 {
		t.Fatalf("expected 2 notify-send calls, got %q", calls)
	}
	if !strings.Contains(calls[0], "deskdrop - Moving") || !strings.Contains(calls[0], "a.txt → Other") {
		t.Fatalf("unexpected start call: %q", calls[0])
	}
	if strings.Contains(calls[0], "--replace-id") {
		t.Fatalf("first bubble must not replace anything: %q", calls[0])
	}
	for _, want := range []string{"--replace-id=42", "--expire-time=6000", "deskdrop - Moved"} {
		if !strings.Contains(calls[1], want) {
			t.Fatalf("completion call %q missing %q", calls[1], want)
		}
	}
}

func TestDesktopMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cfg := testsupport.NewConfig(t)
	cfg.Notify.Desktop = true
	if err := notifications.NewService(cfg).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error when notify-send is missing")
	}
}
