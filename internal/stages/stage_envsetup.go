package stages

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/runner"
)

// EnvSetup verifies the pinned interpreter and installs the pinned tools.
func (e *Env) EnvSetup(ctx context.Context, bs *pipeline.BuildState) error {
	run := runner.New(bs.CheckoutPath)

	version, err := run.InterpreterVersion(ctx, bs.Config.Interp)
	if err != nil {
		return pipeline.NewFatalStageError(pipeline.StageEnvSetup,
			fmt.Errorf("interpreter %s unavailable: %w", bs.Config.Interp.Binary, err))
	}
	if !runner.VersionSatisfiesPin(version, bs.Config.Interp.Version) {
		return pipeline.NewFatalStageError(pipeline.StageEnvSetup,
			fmt.Errorf("interpreter version %s does not satisfy pin %s", version, bs.Config.Interp.Version))
	}
	slog.Info("Interpreter verified", "binary", bs.Config.Interp.Binary, "version", version, "pin", bs.Config.Interp.Version)

	if err := run.InstallTools(ctx, bs.Config.Interp, bs.Config.Tools); err != nil {
		return pipeline.NewFatalStageError(pipeline.StageEnvSetup, err)
	}
	return nil
}
