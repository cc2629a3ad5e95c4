package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mediaflow/internal/ledger"
	"mediaflow/internal/pipeline"
	"mediaflow/internal/services"
	"mediaflow/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.BeginRun(t, store, "run-1", 2)

	results := []pipeline.StageResult{
		pipeline.Skipped("a", pipeline.StageFetch, "/w/raw/a"),
		pipeline.Succeeded("b", pipeline.StageFetch, "/w/raw/b", 1500*time.Millisecond),
		pipeline.Failed("b", pipeline.StageConvert, services.KindConversion, "invalid data", 20*time.Millisecond),
	}
	for _, res := range results {
		if err := store.RecordResult(ctx, "run-1", res.Key+".mp4", res); err != nil {
			t.Fatalf("RecordResult: %v", err)
		}
	}
	if err := store.FinishRun(ctx, "run-1", ledger.Completion{
		Status: ledger.RunCompleted,
		Tier:   "primary",
		Totals: ledger.Totals{Items: 2, Succeeded: 1, Failed: 1},
	}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != ledger.RunCompleted || run.Tier != "primary" || run.Totals.Failed != 1 {
		t.Fatalf("unexpected run %#v", run)
	}
	if run.FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}

	got, err := store.RunResults(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunResults: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[2].Kind != string(services.KindConversion) || got[2].Stage != "convert" || got[2].Outcome != "failed" {
		t.Fatalf("unexpected failure row %#v", got[2])
	}
	if got[1].Duration != 1500*time.Millisecond || got[1].Source != "b.mp4" {
		t.Fatalf("unexpected success row %#v", got[1])
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		testsupport.BeginRun(t, store, id, 1)
		time.Sleep(2 * time.Millisecond)
	}
	runs, err := store.ListRuns(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("unexpected order: %#v", runs)
	}
	if runs[0].Status != ledger.RunRunning {
		t.Fatalf("expected running status, got %s", runs[0].Status)
	}
}

func TestFindRunByPrefix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.BeginRun(t, store, "3f2a9c10-aaaa", 1)
	testsupport.BeginRun(t, store, "3f2b0000-bbbb", 1)

	run, err := store.FindRun(ctx, "3f2a")
	if err != nil || run.ID != "3f2a9c10-aaaa" {
		t.Fatalf("FindRun = %#v, %v", run, err)
	}
	if _, err := store.FindRun(ctx, "3f2"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ambiguous prefix error, got %v", err)
	}
	if _, err := store.FindRun(ctx, "ffff"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	err := store.FinishRun(context.Background(), "missing", ledger.Completion{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.GetRun(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.BeginRun(t, store, "persisted", 3)
	store.Close()

	reopened := testsupport.MustOpenLedger(t, cfg)
	run, err := reopened.GetRun(context.Background(), "persisted")
	if err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
	if run.Totals.Items != 3 {
		t.Fatalf("unexpected items %d", run.Totals.Items)
	}
}

func TestPruneBeforeSkipsRunningRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.BeginRun(t, store, "old-done", 1)
	testsupport.BeginRun(t, store, "old-running", 1)
	if err := store.FinishRun(ctx, "old-done", ledger.Completion{}); err != nil {
		t.Fatal(err)
	}
	removed, err := store.PruneBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned run, got %d", removed)
	}
	if _, err := store.GetRun(ctx, "old-running"); err != nil {
		t.Fatalf("running run was pruned: %v", err)
	}
}
