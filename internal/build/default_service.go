package build

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/litebuilder/internal/eventstore"
	"git.home.luguber.info/inful/litebuilder/internal/metrics"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/retry"
	"git.home.luguber.info/inful/litebuilder/internal/stages"
	"git.home.luguber.info/inful/litebuilder/internal/workspace"
)

// DefaultService is the standard implementation of Service. It wires the
// workspace, stage registry, executor, metrics recorder, and run-event log
// together for one run at a time.
//
// The With* setters may be called while a run is in flight (the daemon
// re-applies the retry policy on config reload); the mutex keeps those swaps
// safe against the running pipeline.
type DefaultService struct {
	mu       sync.RWMutex
	recorder metrics.Recorder
	events   eventstore.Store
	policy   retry.Policy

	// workspaceFactory can be injected for testing.
	workspaceFactory func(req Request) *workspace.Manager
}

// NewService creates a DefaultService with a no-op recorder and no event log.
func NewService() *DefaultService {
	return &DefaultService{
		recorder: metrics.NoopRecorder{},
		policy:   retry.DefaultPolicy(),
		workspaceFactory: func(req Request) *workspace.Manager {
			if req.Incremental {
				return workspace.NewPersistentManager(req.WorkspaceBase, "working")
			}
			return workspace.NewManager(req.WorkspaceBase)
		},
	}
}

// WithRecorder injects a metrics recorder.
func (s *DefaultService) WithRecorder(r metrics.Recorder) *DefaultService {
	if r != nil {
		s.mu.Lock()
		s.recorder = r
		s.mu.Unlock()
	}
	return s
}

// WithEventStore injects a run-event log. Nil disables event recording.
func (s *DefaultService) WithEventStore(es eventstore.Store) *DefaultService {
	s.mu.Lock()
	s.events = es
	s.mu.Unlock()
	return s
}

// WithRetryPolicy overrides the transient-failure retry policy.
func (s *DefaultService) WithRetryPolicy(p retry.Policy) *DefaultService {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	return s
}

// WithWorkspaceFactory injects a custom workspace factory (for testing).
func (s *DefaultService) WithWorkspaceFactory(f func(req Request) *workspace.Manager) *DefaultService {
	if f != nil {
		s.mu.Lock()
		s.workspaceFactory = f
		s.mu.Unlock()
	}
	return s
}

// deps snapshots the injected collaborators so a run keeps a consistent set
// even if a setter fires mid-run.
func (s *DefaultService) deps() (metrics.Recorder, eventstore.Store, retry.Policy, func(Request) *workspace.Manager) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recorder, s.events, s.policy, s.workspaceFactory
}

// Run executes the complete pipeline for one trigger.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Config == nil {
		return nil, fmt.Errorf("config required")
	}

	cfg := req.Config
	if req.OutputDir != "" {
		// Copy so a caller-supplied override never mutates shared config.
		clone := *cfg
		clone.Site.OutputDir = req.OutputDir
		cfg = &clone
	}

	recorder, events, policy, workspaceFactory := s.deps()

	ws := workspaceFactory(req)
	if err := ws.Create(); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to cleanup workspace", "error", err)
		}
	}()

	bs := pipeline.NewBuildState(cfg, req.Trigger)
	bs.Incremental = req.Incremental
	bs.WorkspaceDir = ws.Path()

	appendRunEvent(ctx, events, bs.RunID, eventstore.EventRunStarted, runStartedPayload{
		Event:       req.Trigger.Event,
		Branch:      req.Trigger.Branch,
		Incremental: req.Incremental,
	})

	env := stages.NewEnv(recorder, policy)
	registry := stages.NewRegistry(env)
	executor := pipeline.NewExecutor(registry, pipeline.WithRecorder(recorder))

	_, runErr := executor.ExecuteAll(ctx, bs)

	result := &Result{
		Outcome:    bs.Report.Outcome,
		Report:     bs.Report,
		SiteDir:    bs.SiteDir,
		Artifact:   bs.Artifact,
		Published:  bs.Published,
		PublishURL: bs.PublishURL,
		Duration:   bs.Report.Duration(),
	}

	recordStageEvents(ctx, events, bs)
	appendRunEvent(ctx, events, bs.RunID, eventstore.EventRunFinished, runFinishedPayload{
		Outcome:      string(bs.Report.Outcome),
		DurationMS:   bs.Report.Duration().Milliseconds(),
		CacheHit:     bs.Report.CacheHit,
		Published:    bs.Published,
		ArtifactHash: bs.Report.ArtifactHash,
		Head:         bs.CheckoutHead,
	})

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

type runStartedPayload struct {
	Event       string `json:"event"`
	Branch      string `json:"branch"`
	Incremental bool   `json:"incremental"`
}

type stageFinishedPayload struct {
	Stage      string `json:"stage"`
	Result     string `json:"result"`
	DurationMS int64  `json:"duration_ms"`
}

type runFinishedPayload struct {
	Outcome      string `json:"outcome"`
	DurationMS   int64  `json:"duration_ms"`
	CacheHit     bool   `json:"cache_hit"`
	Published    bool   `json:"published"`
	ArtifactHash string `json:"artifact_hash,omitempty"`
	Head         string `json:"head,omitempty"`
}

func recordStageEvents(ctx context.Context, events eventstore.Store, bs *pipeline.BuildState) {
	if events == nil {
		return
	}
	// Walk in plan order so the event log reads like the run.
	for _, stage := range pipeline.AllStages() {
		res, ok := bs.Report.StageResults[stage]
		if !ok {
			continue
		}
		appendRunEvent(ctx, events, bs.RunID, eventstore.EventStageFinished, stageFinishedPayload{
			Stage:      string(stage),
			Result:     string(res),
			DurationMS: bs.Report.StageDurations[stage].Milliseconds(),
		})
	}
}

func appendRunEvent(ctx context.Context, events eventstore.Store, runID, eventType string, payload any) {
	if events == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Failed to encode run event", "type", eventType, "error", err)
		return
	}
	// Event logging is best effort; a full disk must not fail the run.
	if err := events.Append(ctx, runID, eventType, data, nil); err != nil {
		slog.Warn("Failed to append run event", "type", eventType, "error", err)
	}
}

var _ Service = (*DefaultService)(nil)
