package eventstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AppendAndGetByRunID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload, _ := json.Marshal(map[string]string{"event": "push", "branch": "main"})
	if err := store.Append(ctx, "run-1", EventRunStarted, payload, map[string]string{"host": "ci-1"}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := store.Append(ctx, "run-1", EventStageFinished, []byte(`{"stage":"checkout"}`), nil); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := store.Append(ctx, "run-2", EventRunStarted, []byte(`{}`), nil); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	events, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID() failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventRunStarted || events[1].Type != EventStageFinished {
		t.Errorf("events out of append order: %v, %v", events[0].Type, events[1].Type)
	}
	if events[0].Metadata["host"] != "ci-1" {
		t.Errorf("metadata not round-tripped: %+v", events[0].Metadata)
	}

	var decoded map[string]string
	if err := json.Unmarshal(events[0].Payload, &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if decoded["branch"] != "main" {
		t.Errorf("payload not round-tripped: %+v", decoded)
	}
}

func TestSQLiteStore_GetByRunID_Empty(t *testing.T) {
	store := newTestStore(t)
	events, err := store.GetByRunID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByRunID() failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestSQLiteStore_GetRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, "run-1", EventRunFinished, []byte(`{}`), nil); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	events, err := store.GetRange(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetRange() failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event in range, got %d", len(events))
	}

	past, err := store.GetRange(ctx, now.Add(-2*time.Hour), now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(past) != 0 {
		t.Errorf("expected no events in past range, got %d", len(past))
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Append(context.Background(), "run-1", EventRunStarted, []byte(`{}`), nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	events, err := reopened.GetByRunID(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("expected event to survive reopen, got %d", len(events))
	}
}

func appendFinishedRun(t *testing.T, store *SQLiteStore, runID, outcome string, published bool) {
	t.Helper()
	payload, _ := json.Marshal(map[string]any{
		"outcome":     outcome,
		"duration_ms": 1500,
		"cache_hit":   true,
		"published":   published,
	})
	if err := store.Append(context.Background(), runID, EventRunFinished, payload, nil); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
}

func TestSQLiteStore_Runs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// run_started noise must not show up as a run summary.
	if err := store.Append(ctx, "run-1", EventRunStarted, []byte(`{"event":"push"}`), nil); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	appendFinishedRun(t, store, "run-1", "success", true)
	appendFinishedRun(t, store, "run-2", "failed", false)
	appendFinishedRun(t, store, "run-3", "success", true)

	since := time.Now().Add(-time.Hour)
	runs, err := store.Runs(ctx, since, "", 0)
	if err != nil {
		t.Fatalf("Runs() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-3" || runs[2].RunID != "run-1" {
		t.Errorf("runs should be newest first, got %s..%s", runs[0].RunID, runs[2].RunID)
	}
	if !runs[0].CacheHit || !runs[0].Published || runs[0].Duration != 1500*time.Millisecond {
		t.Errorf("summary fields not decoded: %+v", runs[0])
	}
}

func TestSQLiteStore_RunsOutcomeFilter(t *testing.T) {
	store := newTestStore(t)

	appendFinishedRun(t, store, "run-1", "success", true)
	appendFinishedRun(t, store, "run-2", "failed", false)

	runs, err := store.Runs(context.Background(), time.Now().Add(-time.Hour), "failed", 0)
	if err != nil {
		t.Fatalf("Runs() failed: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-2" || runs[0].Outcome != "failed" {
		t.Errorf("unexpected filtered runs: %+v", runs)
	}
}

func TestSQLiteStore_RunsLimit(t *testing.T) {
	store := newTestStore(t)

	appendFinishedRun(t, store, "run-1", "success", true)
	appendFinishedRun(t, store, "run-2", "success", true)
	appendFinishedRun(t, store, "run-3", "success", true)

	runs, err := store.Runs(context.Background(), time.Now().Add(-time.Hour), "", 1)
	if err != nil {
		t.Fatalf("Runs() failed: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-3" {
		t.Errorf("expected only the latest run, got %+v", runs)
	}
}
