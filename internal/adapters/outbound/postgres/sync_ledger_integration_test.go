//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/testutil"
)

func TestSyncLedger_RecordAndList(t *testing.T) {
	pool, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	ledger, err := NewSyncLedger(pool, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	first := entity.SyncResult{
		RequestID:   "req-1",
		Transferred: 2,
		Destination: "rschoefb@lxplus.cern.ch:/eos/user/r/rschoefb/www/",
		Status:      entity.SyncStatusSucceeded,
		StartedAt:   start,
		FinishedAt:  start.Add(time.Second),
	}
	if err := ledger.RecordRun(ctx, first, []string{"/w/www/./b.png", "/w/www/./a.png"}); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	second := entity.SyncResult{
		RequestID:  "req-2",
		FailedGifs: []string{"scan"},
		Status:     entity.SyncStatusPartial,
		StartedAt:  start.Add(time.Minute),
		FinishedAt: start.Add(time.Minute + time.Second),
	}
	if err := ledger.RecordRun(ctx, second, nil); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	runs, err := ledger.RecentRuns(ctx, 0)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Result.RequestID != "req-2" {
		t.Errorf("expected newest run first, got %s", runs[0].Result.RequestID)
	}
	if len(runs[0].Result.FailedGifs) != 1 || runs[0].Result.Status != entity.SyncStatusPartial {
		t.Errorf("unexpected second run: %+v", runs[0].Result)
	}
	files := runs[1].Files
	if len(files) != 2 || files[0] != "/w/www/./b.png" || files[1] != "/w/www/./a.png" {
		t.Errorf("files not kept in request order: %v", files)
	}
	if !runs[1].Result.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, expected %v", runs[1].Result.StartedAt, start)
	}

	limited, err := ledger.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 run with limit, got %d", len(limited))
	}
}

func TestSyncLedger_RerunReplacesFiles(t *testing.T) {
	pool, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	ledger, _ := NewSyncLedger(pool, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	failed := entity.SyncResult{RequestID: "req-1", Status: entity.SyncStatusFailed, Error: "exit status 255", StartedAt: now, FinishedAt: now}
	if err := ledger.RecordRun(ctx, failed, []string{"a", "b", "c"}); err != nil {
		t.Fatal(err)
	}
	ok := entity.SyncResult{RequestID: "req-1", Status: entity.SyncStatusSucceeded, Transferred: 2, StartedAt: now, FinishedAt: now}
	if err := ledger.RecordRun(ctx, ok, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}

	runs, err := ledger.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected rerun to replace the run, got %d runs", len(runs))
	}
	if runs[0].Result.Status != entity.SyncStatusSucceeded || runs[0].Result.Error != "" {
		t.Errorf("unexpected run: %+v", runs[0].Result)
	}
	if len(runs[0].Files) != 2 {
		t.Errorf("expected 2 files, got %v", runs[0].Files)
	}
}

func TestSyncLedger_MissingRequestID(t *testing.T) {
	pool, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	ledger, _ := NewSyncLedger(pool, nil)
	if err := ledger.RecordRun(context.Background(), entity.SyncResult{}, nil); err == nil {
		t.Error("expected error for missing request id")
	}
}
