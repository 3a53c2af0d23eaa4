package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	started := time.UnixMilli(1_700_000_000_000)

	run := Run{ID: "run-1", SourceRoot: "/src", OutputRoot: "/out", StartedAt: started, Total: 6, Cached: 2}
	if err := store.BeginRun(ctx, run); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if !got.FinishedAt.IsZero() {
		t.Errorf("unfinished run has FinishedAt %v", got.FinishedAt)
	}
	if got.Total != 6 || got.Cached != 2 || !got.StartedAt.Equal(started) {
		t.Errorf("unexpected run: %+v", got)
	}

	totals := RunTotals{Succeeded: 2, Partial: 1, FailedRetriable: 1}
	if err := store.FinishRun(ctx, "run-1", started.Add(time.Minute), totals); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Totals != totals {
		t.Errorf("totals = %+v, want %+v", got.Totals, totals)
	}
	if got.FinishedAt.Sub(got.StartedAt) != time.Minute {
		t.Errorf("unexpected duration %v", got.FinishedAt.Sub(got.StartedAt))
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := testStore(t)
	err := store.FinishRun(context.Background(), "missing", time.Now(), RunTotals{})
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestGetRun_LatestAndEmpty(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, err := store.GetRun(ctx, ""); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound on empty journal, got %v", err)
	}

	base := time.UnixMilli(1_700_000_000_000)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.BeginRun(ctx, Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("BeginRun(%s) failed: %v", id, err)
		}
	}

	latest, err := store.GetRun(ctx, "")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if latest.ID != "c" {
		t.Errorf("latest run = %s, want c", latest.ID)
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("unexpected runs: %+v", runs)
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}
}

func TestFailures(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, Run{ID: "r", StartedAt: time.Now()}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	outcomes := []Outcome{
		{RunID: "r", File: "loops/sum.c", Compiler: "cg152", Scenario: "O2", Status: "succeeded", Attempts: 1},
		{RunID: "r", File: "loops/sum.c", Compiler: "cg152", Scenario: "O3", Status: "failed", Reason: "HTTP 503", Retriable: true, Attempts: 4, Duration: 1500 * time.Millisecond},
		{RunID: "r", File: "heap/uaf.c", Compiler: "cg152", Scenario: "O2", Status: "failed", Reason: "exit 1", Attempts: 1},
		{RunID: "r", File: "heap/uaf.c", Compiler: "cg152", Scenario: "O3", Status: "partial", Attempts: 2},
	}
	for _, o := range outcomes {
		if err := store.RecordOutcome(ctx, o); err != nil {
			t.Fatalf("RecordOutcome failed: %v", err)
		}
	}

	failures, err := store.Failures(ctx, "r")
	if err != nil {
		t.Fatalf("Failures failed: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0] != outcomes[1] {
		t.Errorf("first failure = %+v, want %+v", failures[0], outcomes[1])
	}
	if failures[1].Retriable || failures[1].Reason != "exit 1" {
		t.Errorf("unexpected second failure: %+v", failures[1])
	}
}

func TestOutcomeRequiresRun(t *testing.T) {
	store := testStore(t)
	err := store.RecordOutcome(context.Background(), Outcome{RunID: "nope", File: "f", Status: "failed"})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown run")
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "journal.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.BeginRun(ctx, Run{ID: "persisted", StartedAt: time.Now()}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetRun(ctx, "persisted"); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
}
