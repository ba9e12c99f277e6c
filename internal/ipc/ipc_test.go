package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deskdrop/internal/daemon"
	"deskdrop/internal/history"
	"deskdrop/internal/ipc"
	"deskdrop/internal/logging"
	"deskdrop/internal/opener"
	"deskdrop/internal/testsupport"
)

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	logger := logging.NewNop()
	d, err := daemon.New(cfg, store, logger, daemon.Options{Opener: opener.Nop{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}

	shutdown := make(chan struct{})
	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger, func() { close(shutdown) })
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.PID != os.Getpid() {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Destination != filepath.Join(cfg.Paths.WatchDir, cfg.Arrange.FallbackFolder) {
		t.Fatalf("destination = %q", status.Destination)
	}
	if status.LockPath != cfg.LockPath() {
		t.Fatalf("lock path = %q", status.LockPath)
	}

	pause, err := client.Pause()
	if err != nil || !pause.Changed {
		t.Fatalf("Pause: %+v %v", pause, err)
	}
	status, err = client.Status()
	if err != nil || !status.Paused {
		t.Fatalf("expected paused status: %+v %v", status, err)
	}

	src := filepath.Join(cfg.Paths.WatchDir, "photo.jpg")
	testsupport.WriteFile(t, src, 32)
	arranged, err := client.Arrange(src)
	if err != nil {
		t.Fatalf("Arrange RPC failed: %v", err)
	}
	if arranged.Outcome.Status != history.StatusMoved {
		t.Fatalf("unexpected outcome: %+v", arranged.Outcome)
	}

	missing, err := client.Arrange(filepath.Join(cfg.Paths.WatchDir, "missing"))
	if err != nil {
		t.Fatalf("Arrange RPC for missing path: %v", err)
	}
	if missing.Outcome.Error == "" {
		t.Fatal("expected outcome error for a missing path")
	}

	hist, err := client.History(5)
	if err != nil {
		t.Fatalf("History RPC failed: %v", err)
	}
	if len(hist.Entries) == 0 || hist.Entries[0].Source == "" {
		t.Fatalf("unexpected history: %+v", hist.Entries)
	}

	resume, err := client.Resume()
	if err != nil || !resume.Changed {
		t.Fatalf("Resume: %+v %v", resume, err)
	}

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification RPC failed: %v", err)
	}
	if notify.Sent {
		t.Fatal("no backend is configured; nothing should be sent")
	}

	stop, err := client.Stop()
	if err != nil || !stop.Stopped {
		t.Fatalf("Stop: %+v %v", stop, err)
	}
	select {
	case <-shutdown:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown hook not called")
	}
	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("daemon should report stopped")
	}
}
