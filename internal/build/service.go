// Package build provides the canonical pipeline execution entry point.
// All execution paths (CLI, daemon, tests) should route through Service.
package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/litebuilder/internal/config"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
)

// Service executes complete pipeline runs.
type Service interface {
	// Run executes one run: checkout → env setup → toolchain restore/build →
	// assemble → verify → package → publish. Returns a Result with the run
	// report even when the run failed.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request contains everything needed to execute one run.
type Request struct {
	// Config is the loaded configuration for this run.
	Config *config.Config

	// Trigger records what started the run; the publish gate reads it.
	Trigger pipeline.Trigger

	// OutputDir overrides the configured site output directory when set.
	OutputDir string

	// Incremental reuses a persistent workspace and updates the existing
	// checkout instead of cloning fresh.
	Incremental bool

	// WorkspaceBase is the parent directory for the workspace. Empty means
	// the system temp directory.
	WorkspaceBase string
}

// Result contains the outcome of one run.
type Result struct {
	// Outcome is the final run state derived from the stage results.
	Outcome pipeline.RunOutcome

	// Report holds per-stage durations, results, and collected errors.
	Report *pipeline.RunReport

	// SiteDir is the assembled site directory (empty if assembly never ran).
	SiteDir string

	// Artifact describes the packaged archive, nil if packaging never ran.
	Artifact *pipeline.ArtifactInfo

	// Published indicates the publish stage uploaded the site.
	Published bool

	// PublishURL is where the site ended up, when published.
	PublishURL string

	// Duration is the total run wall time.
	Duration time.Duration
}

// IsSuccess returns true when the run produced a usable site, warnings included.
func (r *Result) IsSuccess() bool {
	return r.Outcome == pipeline.OutcomeSuccess || r.Outcome == pipeline.OutcomeWarning
}
