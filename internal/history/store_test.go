package history_test

import (
	"context"
	"testing"
	"time"

	"deskdrop/internal/history"
	"deskdrop/internal/testsupport"
)

func TestRecordAndRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first, err := store.Record(ctx, history.Entry{
		CorrelationID: "c1",
		Source:        "/desk/a.txt",
		Target:        "/desk/KINGSTON/a.txt",
		Device:        "KINGSTON",
		Bytes:         120,
		Wait:          1500 * time.Millisecond,
		Status:        history.StatusMoved,
		CreatedAt:     start,
		FinishedAt:    start.Add(2 * time.Second),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := store.Record(ctx, history.Entry{
		CorrelationID: "c2",
		Source:        "/desk/project",
		IsDir:         true,
		Status:        history.StatusFailed,
		Error:         "destination already exists",
		CreatedAt:     start.Add(time.Minute),
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].CorrelationID != "c2" || !entries[0].IsDir || entries[0].Target != "" {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	got := entries[1]
	if got.ID != first || got.Device != "KINGSTON" || got.Bytes != 120 || got.Wait != 1500*time.Millisecond {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if !got.CreatedAt.Equal(start) || !got.FinishedAt.Equal(start.Add(2*time.Second)) {
		t.Fatalf("timestamps not preserved: %+v", got)
	}

	limited, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored: %d", len(limited))
	}

	missing, err := store.Get(ctx, 999)
	if err != nil || missing != nil {
		t.Fatalf("Get(missing) = %v, %v", missing, err)
	}
}

func TestRecordValidates(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if _, err := store.Record(context.Background(), history.Entry{Status: history.StatusMoved}); err == nil {
		t.Fatal("expected error without source")
	}
	if _, err := store.Record(context.Background(), history.Entry{Source: "/desk/a"}); err == nil {
		t.Fatal("expected error without status")
	}
}

func TestStatsAndPrune(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	old := time.Now().AddDate(0, 0, -60)
	recent := time.Now().Add(-time.Hour)

	records := []history.Entry{
		{Source: "/desk/1", Status: history.StatusMoved, Bytes: 100, CreatedAt: old, FinishedAt: old},
		{Source: "/desk/2", Status: history.StatusMoved, Bytes: 50, CreatedAt: recent, FinishedAt: recent},
		{Source: "/desk/3", Status: history.StatusFailed, CreatedAt: recent},
		{Source: "/desk/4", Status: history.StatusSkipped, CreatedAt: recent},
	}
	for _, r := range records {
		if _, err := store.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	summary, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if summary.Total != 4 || summary.Moved != 2 || summary.Failed != 1 || summary.Skipped != 1 || summary.Bytes != 150 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.LastMoved.Equal(recent.UTC()) {
		t.Fatalf("last moved = %v, want %v", summary.LastMoved, recent.UTC())
	}

	removed, err := store.Prune(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("pruned %d rows, want 1", removed)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Record(context.Background(), history.Entry{Source: "/desk/a", Status: history.StatusMoved}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	store.Close()

	reopened := testsupport.MustOpenHistory(t, cfg)
	version, err := reopened.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != "002_cross_device" {
		t.Fatalf("schema version = %q", version)
	}
	entries, err := reopened.Recent(context.Background(), 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("Recent after reopen = %d, %v", len(entries), err)
	}
}
