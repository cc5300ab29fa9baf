// Package stages implements the concrete pipeline stages over BuildState.
// Each stage reads only fields its dependencies wrote; internal/pipeline
// enforces the ordering.
package stages

import (
	"git.home.luguber.info/inful/litebuilder/internal/metrics"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/retry"
)

// Env carries the collaborators shared across stages that are not part of
// the per-run BuildState.
type Env struct {
	Recorder metrics.Recorder
	Policy   retry.Policy
}

// NewEnv creates a stage environment with the given recorder and policy.
func NewEnv(recorder metrics.Recorder, policy retry.Policy) *Env {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Env{Recorder: recorder, Policy: policy}
}

// NewRegistry wires every stage implementation into a pipeline registry.
func NewRegistry(env *Env) *pipeline.Registry {
	return pipeline.NewRegistry().
		Register(pipeline.StageCheckout, env.Checkout).
		Register(pipeline.StageEnvSetup, env.EnvSetup).
		Register(pipeline.StageToolchainRestore, env.ToolchainRestore).
		Register(pipeline.StageToolchainBuild, env.ToolchainBuild).
		Register(pipeline.StageAssemble, env.Assemble).
		Register(pipeline.StageVerify, env.Verify).
		Register(pipeline.StagePackage, env.Package).
		Register(pipeline.StagePublish, env.Publish)
}
