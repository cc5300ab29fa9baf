package publish

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalDirPublisher mirrors the site tree into a local directory, replacing
// any previous deployment atomically enough for a static file server: the
// new tree is staged next to the target and swapped in with a rename.
type LocalDirPublisher struct {
	target string
}

// NewLocalDirPublisher creates a publisher for the target directory.
func NewLocalDirPublisher(target string) *LocalDirPublisher {
	return &LocalDirPublisher{target: target}
}

// Publish copies the site tree into place.
func (p *LocalDirPublisher) Publish(siteDir string) error {
	parent := filepath.Dir(p.target)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return fmt.Errorf("create publish parent: %w", err)
	}

	staging, err := os.MkdirTemp(parent, ".litebuilder-deploy-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := copyTree(siteDir, staging); err != nil {
		return fmt.Errorf("stage site: %w", err)
	}

	old := p.target + ".old"
	_ = os.RemoveAll(old)
	if _, serr := os.Stat(p.target); serr == nil {
		if err := os.Rename(p.target, old); err != nil {
			return fmt.Errorf("retire previous deployment: %w", err)
		}
	}
	if err := os.Rename(staging, p.target); err != nil {
		return fmt.Errorf("activate deployment: %w", err)
	}
	_ = os.RemoveAll(old)

	slog.Info("Site published to local directory", "path", p.target)
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
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
		// #nosec G304 - p comes from walking the site output tree
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
			return fmt.Errorf("copy %s: %w", rel, err)
		}
		return f.Close()
	})
}
