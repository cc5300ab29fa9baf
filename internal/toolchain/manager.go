package toolchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/litebuilder/internal/config"
	"git.home.luguber.info/inful/litebuilder/internal/runner"
)

// RestoreResult reports how the toolchain directory was obtained.
type RestoreResult struct {
	Path     string
	CacheHit bool
	Head     string
}

// Manager restores the toolchain checkout and builds the runtime
// distribution inside it.
type Manager struct {
	cfg   config.ToolchainConfig
	cache *Cache
}

// NewManager creates a toolchain manager.
func NewManager(cfg config.ToolchainConfig) *Manager {
	return &Manager{cfg: cfg, cache: NewCache(cfg)}
}

// Cache exposes the underlying cache for CLI status/clear.
func (m *Manager) Cache() *Cache { return m.cache }

// Restore ensures the toolchain checkout exists at the pinned tag. On a
// cache hit the clone is skipped entirely; the existing checkout is only
// fetch-updated, and when the remote is unreachable the cached checkout is
// used as is. On a miss the stale directory is removed and the toolchain is
// cloned fresh at the pinned tag.
func (m *Manager) Restore(ctx context.Context) (RestoreResult, error) {
	hit, marker, err := m.cache.Lookup()
	if err != nil {
		return RestoreResult{}, err
	}

	dir := m.cache.Dir()
	if hit {
		slog.Info("Toolchain cache hit, skipping clone", "key", m.cfg.CacheKey, "tag", m.cfg.Tag, "path", dir)
		refreshed := *marker
		if head, ferr := m.fetchUpdate(ctx, dir); ferr != nil {
			// The pinned tag is already checked out; offline runs proceed.
			slog.Warn("Toolchain fetch failed, using cached checkout", "error", ferr)
		} else {
			refreshed.Head = head
		}
		if err := m.cache.WriteMarker(refreshed); err != nil {
			return RestoreResult{}, err
		}
		return RestoreResult{Path: dir, CacheHit: true, Head: refreshed.Head}, nil
	}

	slog.Info("Toolchain cache miss, cloning", "key", m.cfg.CacheKey, "tag", m.cfg.Tag, "url", m.cfg.URL)
	if err := m.cache.Clear(); err != nil {
		return RestoreResult{}, err
	}

	head, err := m.cloneAtTag(ctx, dir)
	if err != nil {
		return RestoreResult{}, err
	}

	created := time.Now().UTC()
	if err := m.cache.WriteMarker(Marker{Head: head, CreatedAt: created}); err != nil {
		return RestoreResult{}, err
	}
	return RestoreResult{Path: dir, CacheHit: false, Head: head}, nil
}

// fetchUpdate refreshes the tags of an existing checkout and moves it to the
// pinned tag if the tag changed upstream. Returns the resulting head.
func (m *Manager) fetchUpdate(ctx context.Context, dir string) (string, error) {
	repository, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("open toolchain checkout: %w", err)
	}

	fetchOpts := &git.FetchOptions{
		RemoteName: "origin",
		// Forced refspec so a retagged release still updates.
		RefSpecs: []gitcfg.RefSpec{"+refs/tags/*:refs/tags/*"},
		Tags:     git.NoTags,
	}
	if err := repository.FetchContext(ctx, fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("fetch toolchain: %w", err)
	}

	tagRef, err := repository.Reference(plumbing.NewTagReferenceName(m.cfg.Tag), true)
	if err != nil {
		return "", fmt.Errorf("resolve toolchain tag %s: %w", m.cfg.Tag, err)
	}
	if head, herr := repository.Head(); herr == nil && head.Hash() == tagRef.Hash() {
		return tagRef.Hash().String(), nil
	}

	wt, err := repository.Worktree()
	if err != nil {
		return "", fmt.Errorf("toolchain worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: tagRef.Hash(), Force: true}); err != nil {
		return "", fmt.Errorf("checkout toolchain tag %s: %w", m.cfg.Tag, err)
	}
	return tagRef.Hash().String(), nil
}

func (m *Manager) cloneAtTag(ctx context.Context, dir string) (string, error) {
	opts := &git.CloneOptions{
		URL:           m.cfg.URL,
		ReferenceName: plumbing.NewTagReferenceName(m.cfg.Tag),
		SingleBranch:  true,
		Depth:         1,
	}
	repository, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		// Some forges only advertise annotated tags on a full clone;
		// fall back to a full clone plus tag checkout.
		if errors.Is(err, plumbing.ErrReferenceNotFound) || strings.Contains(err.Error(), "couldn't find remote ref") {
			return m.cloneAndCheckoutTag(ctx, dir)
		}
		return "", fmt.Errorf("clone toolchain %s at %s: %w", m.cfg.URL, m.cfg.Tag, err)
	}
	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("toolchain head: %w", err)
	}
	return ref.Hash().String(), nil
}

func (m *Manager) cloneAndCheckoutTag(ctx context.Context, dir string) (string, error) {
	repository, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: m.cfg.URL})
	if err != nil {
		return "", fmt.Errorf("clone toolchain %s: %w", m.cfg.URL, err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return "", fmt.Errorf("toolchain worktree: %w", err)
	}
	tagRef, err := repository.Reference(plumbing.NewTagReferenceName(m.cfg.Tag), true)
	if err != nil {
		return "", fmt.Errorf("resolve toolchain tag %s: %w", m.cfg.Tag, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: tagRef.Hash(), Force: true}); err != nil {
		return "", fmt.Errorf("checkout toolchain tag %s: %w", m.cfg.Tag, err)
	}
	return tagRef.Hash().String(), nil
}

// BuildDistribution runs the configured build command inside the toolchain
// checkout and returns the distribution output directory.
func (m *Manager) BuildDistribution(ctx context.Context, run *runner.Runner) (string, error) {
	slog.Info("Building runtime distribution", "cmd", m.cfg.BuildCmd, "args", m.cfg.BuildArgs)
	if err := run.Run(ctx, m.cfg.BuildCmd, m.cfg.BuildArgs...); err != nil {
		return "", fmt.Errorf("toolchain build: %w", err)
	}
	return filepath.Join(m.cache.Dir(), m.cfg.DistDir), nil
}
