// Package checkout handles fetching the project repository into the
// workspace, either as a fresh clone or an incremental update of an
// existing checkout.
package checkout

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/litebuilder/internal/config"
	"git.home.luguber.info/inful/litebuilder/internal/retry"
)

// Client performs git operations for the project checkout.
type Client struct {
	workspaceDir string
	policy       retry.Policy
	depth        int
	inRetry      bool // internal guard to avoid nested retry wrapping
}

// NewClient creates a new checkout client rooted at the workspace directory.
func NewClient(workspaceDir string, policy retry.Policy) *Client {
	return &Client{workspaceDir: workspaceDir, policy: policy}
}

// WithShallowDepth limits clone/fetch history depth (0 = full history).
func (c *Client) WithShallowDepth(depth int) *Client { c.depth = depth; return c }

// Clone clones the project repository fresh, removing any existing checkout.
func (c *Client) Clone(project config.ProjectConfig) (string, error) {
	if c.inRetry {
		return c.cloneOnce(project)
	}
	return c.withRetry("clone", project.Name, func() (string, error) { return c.cloneOnce(project) })
}

func (c *Client) cloneOnce(project config.ProjectConfig) (string, error) {
	repoPath := filepath.Join(c.workspaceDir, project.Name)
	slog.Debug("Cloning repository", "url", project.URL, "name", project.Name, "branch", project.Branch, "path", repoPath)
	if err := os.RemoveAll(repoPath); err != nil {
		return "", fmt.Errorf("failed to remove existing directory: %w", err)
	}

	opts := &git.CloneOptions{URL: project.URL}
	if project.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(project.Branch)
		opts.SingleBranch = true
	}
	if c.depth > 0 {
		opts.Depth = c.depth
	}
	auth, err := buildAuth(project.Auth)
	if err != nil {
		return "", fmt.Errorf("failed to setup authentication: %w", err)
	}
	opts.Auth = auth

	repository, err := git.PlainClone(repoPath, false, opts)
	if err != nil {
		return "", classifyError("clone", project.URL, err)
	}
	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Repository cloned", "name", project.Name, "commit", shortHash(ref.Hash().String()), "path", repoPath)
	} else {
		slog.Info("Repository cloned", "name", project.Name, "path", repoPath)
	}
	return repoPath, nil
}

// Update fetches and fast-forwards an existing checkout, cloning if missing.
func (c *Client) Update(project config.ProjectConfig) (string, error) {
	if c.inRetry {
		return c.updateOnce(project)
	}
	return c.withRetry("update", project.Name, func() (string, error) { return c.updateOnce(project) })
}

func (c *Client) updateOnce(project config.ProjectConfig) (string, error) {
	repoPath := filepath.Join(c.workspaceDir, project.Name)
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil { // missing => clone
		slog.Debug("Repository missing, cloning", "name", project.Name)
		return c.cloneOnce(project)
	}

	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	slog.Info("Updating repository", "name", project.Name, "path", repoPath)

	auth, err := buildAuth(project.Auth)
	if err != nil {
		return "", fmt.Errorf("failed to setup authentication: %w", err)
	}

	fetchOpts := &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		RefSpecs:   []gitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Auth:       auth,
	}
	if c.depth > 0 {
		fetchOpts.Depth = c.depth
	}
	if err := repository.Fetch(fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", classifyError("fetch", project.URL, err)
	}

	branch := project.Branch
	if branch == "" {
		branch = "main"
	}
	remoteRef, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return "", fmt.Errorf("remote ref %s: %w", branch, err)
	}

	wt, err := repository.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: remoteRef.Hash(), Force: true}); err != nil {
		return "", fmt.Errorf("checkout %s: %w", remoteRef.Hash(), err)
	}
	// Move the local branch ref to match the remote head.
	localRef := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), remoteRef.Hash())
	if err := repository.Storer.SetReference(localRef); err != nil {
		return "", fmt.Errorf("set local ref: %w", err)
	}

	slog.Info("Repository updated", "name", project.Name, "branch", branch, "commit", shortHash(remoteRef.Hash().String()))
	return repoPath, nil
}

// Head returns the current HEAD commit hash for a checkout path.
func (c *Client) Head(repoPath string) (string, error) {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("resolve head: %w", err)
	}
	return ref.Hash().String(), nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
