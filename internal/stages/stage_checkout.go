package stages

import (
	"context"
	"errors"
	"log/slog"

	"git.home.luguber.info/inful/litebuilder/internal/checkout"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
)

// Checkout clones or updates the project repository into the workspace.
func (e *Env) Checkout(ctx context.Context, bs *pipeline.BuildState) error {
	if bs.WorkspaceDir == "" {
		return pipeline.NewFatalStageError(pipeline.StageCheckout, errors.New("workspace directory not set"))
	}

	client := checkout.NewClient(bs.WorkspaceDir, e.Policy)

	var (
		path string
		err  error
	)
	if bs.Incremental {
		path, err = client.Update(bs.Config.Project)
	} else {
		path, err = client.Clone(bs.Config.Project)
	}
	if err != nil {
		return pipeline.NewFatalStageError(pipeline.StageCheckout, err)
	}

	head, err := client.Head(path)
	if err != nil {
		// A checkout without a resolvable HEAD still builds; record and move on.
		slog.Warn("Could not resolve checkout head", "name", bs.Config.Project.Name, "error", err)
	}

	bs.CheckoutPath = path
	bs.CheckoutHead = head
	slog.Info("Checkout ready", "name", bs.Config.Project.Name, "path", path, "commit", head)
	return nil
}
