package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/litebuilder/internal/checkout"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/publish"
)

// Publish pushes the site and artifact to the configured deploy targets.
// The stage is gated: a run triggered by anything other than a push to the
// deploy branch skips publishing entirely.
func (e *Env) Publish(ctx context.Context, bs *pipeline.BuildState) error {
	if !ShouldPublish(bs.Trigger, bs.Config.Deploy) {
		slog.Info("Publish gate not met, skipping",
			"event", bs.Trigger.Event, "branch", bs.Trigger.Branch,
			"want_event", bs.Config.Deploy.Event, "want_branch", bs.Config.Deploy.Branch)
		return nil
	}
	if bs.Config.Deploy.ObjectStore == nil && bs.Config.Deploy.LocalDir == "" {
		slog.Info("No deploy target configured, skipping publish")
		return nil
	}

	if osCfg := bs.Config.Deploy.ObjectStore; osCfg != nil {
		publisher, err := publish.NewObjectStorePublisher(*osCfg)
		if err != nil {
			return pipeline.NewFatalStageError(pipeline.StagePublish, err)
		}
		if err := e.withPublishRetry(ctx, "object_store", func() error {
			if err := publisher.EnsureBucket(ctx); err != nil {
				return err
			}
			if _, err := publisher.UploadSite(ctx, bs.SiteDir); err != nil {
				return err
			}
			if bs.Artifact != nil {
				if _, err := publisher.UploadArtifact(ctx, bs.Artifact.Path, bs.RunID); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			if ctx.Err() != nil {
				return pipeline.NewCanceledStageError(pipeline.StagePublish, ctx.Err())
			}
			return pipeline.NewFatalStageError(pipeline.StagePublish, err)
		}
		bs.PublishURL = publisher.URL()
		e.Recorder.IncPublish("object_store")
	}

	if dir := bs.Config.Deploy.LocalDir; dir != "" {
		if err := publish.NewLocalDirPublisher(dir).Publish(bs.SiteDir); err != nil {
			return pipeline.NewFatalStageError(pipeline.StagePublish, err)
		}
		if bs.PublishURL == "" {
			bs.PublishURL = dir
		}
		e.Recorder.IncPublish("local_dir")
	}

	bs.Published = true
	bs.Report.Published = true
	slog.Info("Site published", "url", bs.PublishURL)
	return nil
}

// withPublishRetry retries transient upload failures per the env policy.
func (e *Env) withPublishRetry(ctx context.Context, target string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= e.Policy.MaxRetries; attempt++ {
		if attempt > 0 {
			e.Recorder.IncRetry("publish")
			slog.Warn("Retrying publish", "target", target, "attempt", attempt)
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if checkout.IsPermanent(lastErr) || ctx.Err() != nil {
			return lastErr
		}
		if attempt == e.Policy.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.Policy.Delay(attempt + 1)):
		}
	}
	return fmt.Errorf("publish to %s failed after retries: %w", target, lastErr)
}
