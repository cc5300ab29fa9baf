// Package eventstore persists an append-only log of run events so past
// runs can be inspected after the fact.
package eventstore

import (
	"context"
	"time"
)

// Event types recorded over a run's lifecycle.
const (
	EventRunStarted    = "run_started"
	EventStageFinished = "stage_finished"
	EventRunFinished   = "run_finished"
)

// Event is one recorded occurrence in a run.
type Event struct {
	ID        int64             `json:"id"`
	RunID     string            `json:"run_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RunSummary condenses one finished run from its run_finished event.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Outcome      string        `json:"outcome"`
	Published    bool          `json:"published"`
	CacheHit     bool          `json:"cache_hit"`
	ArtifactHash string        `json:"artifact_hash,omitempty"`
	Duration     time.Duration `json:"duration"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Store defines the interface for persisting and retrieving run events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error

	// GetByRunID retrieves all events for a specific run, oldest first.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Runs summarizes finished runs since the given time, newest first.
	// A non-empty outcome restricts the result to that outcome; limit <= 0
	// returns all matches.
	Runs(ctx context.Context, since time.Time, outcome string, limit int) ([]RunSummary, error)

	// Close closes the store and releases resources.
	Close() error
}
