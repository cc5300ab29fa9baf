package stages

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/runner"
)

// Assemble builds the static notebook site: the external packager does the
// heavy lifting, then configured content directories are copied in and a
// landing page is generated from the project README.
func (e *Env) Assemble(ctx context.Context, bs *pipeline.BuildState) error {
	siteDir := bs.Config.Site.OutputDir
	if err := os.RemoveAll(siteDir); err != nil {
		return pipeline.NewFatalStageError(pipeline.StageAssemble, fmt.Errorf("clean site dir: %w", err))
	}
	if err := os.MkdirAll(siteDir, 0o750); err != nil {
		return pipeline.NewFatalStageError(pipeline.StageAssemble, fmt.Errorf("create site dir: %w", err))
	}
	absSite, err := filepath.Abs(siteDir)
	if err != nil {
		return pipeline.NewFatalStageError(pipeline.StageAssemble, err)
	}

	if cmd := bs.Config.Site.AssembleCmd; cmd != "" {
		run := runner.New(bs.CheckoutPath,
			"LITEBUILDER_OUTPUT_DIR="+absSite,
			"LITEBUILDER_DIST_DIR="+bs.DistDir,
			"LITEBUILDER_BASE_URL="+bs.Config.Site.BaseURL,
		)
		if err := run.Run(ctx, cmd, bs.Config.Site.AssembleArg...); err != nil {
			if ctx.Err() != nil {
				return pipeline.NewCanceledStageError(pipeline.StageAssemble, ctx.Err())
			}
			return pipeline.NewFatalStageError(pipeline.StageAssemble, err)
		}
	}

	// Notebook content from the checkout, then extra contents from config.
	copied := 0
	for _, rel := range bs.Config.Project.ContentPaths {
		src := filepath.Join(bs.CheckoutPath, rel)
		n, err := copyContentDir(src, filepath.Join(siteDir, "files", filepath.Base(rel)))
		if err != nil {
			slog.Warn("Content path missing, skipping", "path", rel, "error", err)
			continue
		}
		copied += n
	}
	for _, dir := range bs.Config.Site.Contents {
		n, err := copyContentDir(dir, filepath.Join(siteDir, filepath.Base(dir)))
		if err != nil {
			return pipeline.NewFatalStageError(pipeline.StageAssemble, fmt.Errorf("copy contents %s: %w", dir, err))
		}
		copied += n
	}

	// The site is usable from here on; a warning below must not leave
	// later stages without it.
	bs.SiteDir = siteDir

	if err := e.writeLandingPage(bs, siteDir); err != nil {
		// The packager may have produced its own index; only warn.
		return pipeline.NewWarnStageError(pipeline.StageAssemble, err)
	}

	slog.Info("Site assembled", "path", siteDir, "content_files", copied)
	return nil
}

func copyContentDir(src, dst string) (int, error) {
	if _, err := os.Stat(src); err != nil {
		return 0, err
	}
	count := 0
	err := filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o750)
		}
		// #nosec G304 - p comes from walking the configured content tree
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		defer in.Close()
		if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(f, in); err != nil {
			return err
		}
		count++
		return f.Close()
	})
	return count, err
}
