package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
)

// Verify walks the generated site and checks that local links resolve to
// files. Broken links degrade the run to a warning; they do not block
// packaging.
func (e *Env) Verify(ctx context.Context, bs *pipeline.BuildState) error {
	if bs.SiteDir == "" {
		return pipeline.NewFatalStageError(pipeline.StageVerify, fmt.Errorf("site directory not set"))
	}

	var broken []siteLink
	checked := 0
	err := filepath.WalkDir(bs.SiteDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(p, ".html") {
			return nil
		}
		page, err := filepath.Rel(bs.SiteDir, p)
		if err != nil {
			return err
		}
		links, err := extractLocalLinks(p, filepath.ToSlash(page))
		if err != nil {
			slog.Warn("Could not parse generated page", "page", page, "error", err)
			return nil
		}
		for _, link := range links {
			checked++
			target := resolveLink(bs.SiteDir, link.Page, link.URL)
			if target == "" {
				continue
			}
			if _, serr := os.Stat(target); serr != nil {
				// A bare directory link may still be served via index.html.
				if _, ierr := os.Stat(filepath.Join(target, "index.html")); ierr != nil {
					broken = append(broken, link)
				}
			}
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.NewCanceledStageError(pipeline.StageVerify, ctx.Err())
		}
		return pipeline.NewFatalStageError(pipeline.StageVerify, err)
	}

	if len(broken) > 0 {
		for _, link := range broken {
			slog.Warn("Broken local link", "page", link.Page, "url", link.URL)
		}
		return pipeline.NewWarnStageError(pipeline.StageVerify,
			fmt.Errorf("%d broken local links out of %d checked", len(broken), checked))
	}

	slog.Info("Site verified", "links_checked", checked)
	return nil
}
