// Package pipeline orchestrates the build as a dependency-ordered sequence
// of stages over a shared BuildState. The stage bodies live in
// internal/stages; this package owns ordering, classification, and
// execution.
package pipeline

import (
	"context"
	"fmt"
)

// Stage is a discrete unit of work in the site build.
type Stage func(ctx context.Context, bs *BuildState) error

// StageName is a strongly-typed identifier for a build stage.
type StageName string

// Canonical stage names.
const (
	StageCheckout         StageName = "checkout"
	StageEnvSetup         StageName = "env_setup"
	StageToolchainRestore StageName = "toolchain_restore"
	StageToolchainBuild   StageName = "toolchain_build"
	StageAssemble         StageName = "assemble"
	StageVerify           StageName = "verify"
	StagePackage          StageName = "package"
	StagePublish          StageName = "publish"
)

// Dependencies returns the stages that must complete before the given stage.
// The toolchain build reads the restored cache directory, so the restore
// edge is structural, not conventional.
func Dependencies(stage StageName) []StageName {
	switch stage {
	case StageCheckout:
		return nil
	case StageEnvSetup:
		return []StageName{StageCheckout}
	case StageToolchainRestore:
		return []StageName{StageEnvSetup}
	case StageToolchainBuild:
		return []StageName{StageToolchainRestore}
	case StageAssemble:
		return []StageName{StageCheckout, StageToolchainBuild}
	case StageVerify:
		return []StageName{StageAssemble}
	case StagePackage:
		return []StageName{StageVerify}
	case StagePublish:
		return []StageName{StagePackage}
	default:
		return nil
	}
}

// AllStages lists every stage in declaration order (not execution order).
func AllStages() []StageName {
	return []StageName{
		StageCheckout, StageEnvSetup, StageToolchainRestore, StageToolchainBuild,
		StageAssemble, StageVerify, StagePackage, StagePublish,
	}
}

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Run must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// NewFatalStageError creates a new fatal stage error.
func NewFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

// NewWarnStageError creates a new warning-level stage error.
func NewWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

// NewCanceledStageError creates a stage error for context cancellation.
func NewCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// StageResult captures the high-level outcome of a stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
	StageResultSkipped  StageResult = "skipped"
)

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// Registry maps stage names to their implementations.
type Registry struct {
	stages map[StageName]Stage
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[StageName]Stage, 8)}
}

// Register adds or replaces a stage implementation.
func (r *Registry) Register(name StageName, fn Stage) *Registry {
	r.stages[name] = fn
	return r
}

// Get returns the stage implementation for a name.
func (r *Registry) Get(name StageName) (Stage, bool) {
	fn, ok := r.stages[name]
	return fn, ok
}

// List returns the registered stage names.
func (r *Registry) List() []StageName {
	names := make([]StageName, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	return names
}
