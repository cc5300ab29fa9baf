package stages

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/litebuilder/internal/artifact"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
)

// Package archives the assembled site into the artifact store.
func (e *Env) Package(ctx context.Context, bs *pipeline.BuildState) error {
	store, err := artifact.NewStore(bs.Config.Artifact.Dir)
	if err != nil {
		return pipeline.NewFatalStageError(pipeline.StagePackage, err)
	}

	name := artifact.SanitizeName(bs.RunID)
	path, hash, size, err := artifact.Package(bs.SiteDir, store.ArchiveDir(), name, bs.Config.Artifact.Compress)
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.NewCanceledStageError(pipeline.StagePackage, ctx.Err())
		}
		return pipeline.NewFatalStageError(pipeline.StagePackage, err)
	}

	if err := store.Record(artifact.Manifest{
		RunID:     bs.RunID,
		Path:      path,
		Hash:      hash,
		SizeBytes: size,
		Commit:    bs.CheckoutHead,
	}); err != nil {
		return pipeline.NewFatalStageError(pipeline.StagePackage, err)
	}

	if keep := bs.Config.Artifact.Keep; keep > 0 {
		if removed, perr := store.Prune(keep); perr != nil {
			slog.Warn("Artifact prune failed", "error", perr)
		} else if removed > 0 {
			slog.Info("Pruned old artifacts", "removed", removed, "keep", keep)
		}
	}

	bs.Artifact = &pipeline.ArtifactInfo{Path: path, Hash: hash, SizeBytes: size}
	bs.Report.ArtifactHash = hash
	slog.Info("Artifact packaged", "path", path, "hash", hash[:12], "size_bytes", size)
	return nil
}
