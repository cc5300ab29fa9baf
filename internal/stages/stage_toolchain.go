package stages

import (
	"context"

	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/runner"
	"git.home.luguber.info/inful/litebuilder/internal/toolchain"
)

// ToolchainRestore restores the cached toolchain checkout, cloning only on
// a cache miss.
func (e *Env) ToolchainRestore(ctx context.Context, bs *pipeline.BuildState) error {
	manager := toolchain.NewManager(bs.Config.Toolchain)

	res, err := manager.Restore(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.NewCanceledStageError(pipeline.StageToolchainRestore, ctx.Err())
		}
		return pipeline.NewFatalStageError(pipeline.StageToolchainRestore, err)
	}

	bs.ToolchainPath = res.Path
	bs.ToolchainHit = res.CacheHit
	bs.Report.CacheHit = res.CacheHit
	e.Recorder.IncCacheLookup(res.CacheHit)
	return nil
}

// ToolchainBuild builds the runtime distribution inside the restored
// toolchain checkout.
func (e *Env) ToolchainBuild(ctx context.Context, bs *pipeline.BuildState) error {
	manager := toolchain.NewManager(bs.Config.Toolchain)
	run := runner.New(bs.ToolchainPath)

	dist, err := manager.BuildDistribution(ctx, run)
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.NewCanceledStageError(pipeline.StageToolchainBuild, ctx.Err())
		}
		return pipeline.NewFatalStageError(pipeline.StageToolchainBuild, err)
	}
	bs.DistDir = dist
	return nil
}
