package pipeline

import (
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/litebuilder/internal/config"
)

// Trigger identifies what started a run. The publish gate reads both fields.
type Trigger struct {
	Event  string // "push", "schedule", "manual"
	Branch string // ref the run was triggered for
}

// ArtifactInfo describes the packaged site produced by the package stage.
type ArtifactInfo struct {
	Path      string
	Hash      string
	SizeBytes int64
}

// BuildState threads everything a run accumulates through the stages.
// Stages write the fields their dependents read; the dependency edges in
// Dependencies() guarantee writers run before readers.
type BuildState struct {
	Config  *config.Config
	Trigger Trigger
	RunID   string

	Incremental  bool
	WorkspaceDir string

	// checkout
	CheckoutPath string
	CheckoutHead string

	// toolchain
	ToolchainPath string
	ToolchainHit  bool
	DistDir       string

	// assemble
	SiteDir string

	// package
	Artifact *ArtifactInfo

	// publish
	Published  bool
	PublishURL string

	Report *RunReport
}

// NewBuildState creates a BuildState for one run.
func NewBuildState(cfg *config.Config, trigger Trigger) *BuildState {
	runID := uuid.NewString()
	return &BuildState{
		Config:  cfg,
		Trigger: trigger,
		RunID:   runID,
		Report:  NewRunReport(runID),
	}
}

// RunOutcome is the typed enumeration of final run result states.
type RunOutcome string

const (
	OutcomeSuccess  RunOutcome = "success"
	OutcomeWarning  RunOutcome = "warning"
	OutcomeFailed   RunOutcome = "failed"
	OutcomeCanceled RunOutcome = "canceled"
)

// RunReport captures high-level metrics about one pipeline run.
type RunReport struct {
	RunID          string
	Start          time.Time
	End            time.Time
	Outcome        RunOutcome
	StageDurations map[StageName]time.Duration
	StageResults   map[StageName]StageResult
	Errors         []error
	Warnings       []error
	CacheHit       bool
	Published      bool
	ArtifactHash   string
}

// NewRunReport constructs an empty report.
func NewRunReport(runID string) *RunReport {
	return &RunReport{
		RunID:          runID,
		Start:          time.Now(),
		StageDurations: make(map[StageName]time.Duration, 8),
		StageResults:   make(map[StageName]StageResult, 8),
	}
}

// RecordStage stores a stage outcome and its duration.
func (r *RunReport) RecordStage(stage StageName, result StageResult, d time.Duration) {
	r.StageResults[stage] = result
	r.StageDurations[stage] = d
}

// Finalize stamps the end time and derives the overall outcome from the
// recorded stage results.
func (r *RunReport) Finalize() RunOutcome {
	r.End = time.Now()
	outcome := OutcomeSuccess
	for _, res := range r.StageResults {
		switch res {
		case StageResultCanceled:
			r.Outcome = OutcomeCanceled
			return r.Outcome
		case StageResultFatal:
			outcome = OutcomeFailed
		case StageResultWarning:
			if outcome == OutcomeSuccess {
				outcome = OutcomeWarning
			}
		case StageResultSuccess, StageResultSkipped:
		}
	}
	r.Outcome = outcome
	return outcome
}

// Duration returns the total run duration.
func (r *RunReport) Duration() time.Duration {
	end := r.End
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.Start)
}
