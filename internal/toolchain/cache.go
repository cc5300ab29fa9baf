// Package toolchain manages the cached runtime toolchain checkout. The
// toolchain is a large dependency tree persisted across runs under a fixed
// cache key so that a run with a warm cache never pays for the full clone.
package toolchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/litebuilder/internal/config"
)

const markerFile = ".litebuilder-cache.json"

// Marker records what a cached toolchain directory contains. A cache hit
// requires both the key and the pinned tag to match.
type Marker struct {
	Key       string    `json:"key"`
	Tag       string    `json:"tag"`
	Head      string    `json:"head,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status describes the cache state for CLI reporting.
type Status struct {
	Path    string
	Exists  bool
	Marker  *Marker
	Stale   bool // marker present but key/tag mismatch
	SizeKiB int64
}

// Cache locates and validates the persisted toolchain directory.
type Cache struct {
	cfg config.ToolchainConfig
}

// NewCache creates a cache manager for the configured toolchain.
func NewCache(cfg config.ToolchainConfig) *Cache {
	return &Cache{cfg: cfg}
}

// Dir returns the cache directory for the configured key.
func (c *Cache) Dir() string {
	return filepath.Join(c.cfg.CacheRoot, c.cfg.CacheKey)
}

// Lookup reports whether the cache directory holds a valid checkout for the
// configured key and tag. A stale or corrupt cache counts as a miss; the
// caller decides whether to clear it.
func (c *Cache) Lookup() (hit bool, marker *Marker, err error) {
	dir := c.Dir()
	data, err := os.ReadFile(filepath.Join(dir, markerFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("read cache marker: %w", err)
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("Corrupt toolchain cache marker, treating as miss", "path", dir, "error", err)
		return false, nil, nil
	}
	if m.Key != c.cfg.CacheKey || m.Tag != c.cfg.Tag {
		slog.Info("Toolchain cache is stale",
			"cached_key", m.Key, "cached_tag", m.Tag,
			"want_key", c.cfg.CacheKey, "want_tag", c.cfg.Tag)
		return false, &m, nil
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		slog.Warn("Toolchain cache marker without checkout, treating as miss", "path", dir)
		return false, &m, nil
	}
	return true, &m, nil
}

// WriteMarker persists the marker after a clone or update.
func (c *Cache) WriteMarker(m Marker) error {
	m.Key = c.cfg.CacheKey
	m.Tag = c.cfg.Tag
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache marker: %w", err)
	}
	if err := os.MkdirAll(c.Dir(), 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.Dir(), markerFile), data, 0o644); err != nil {
		return fmt.Errorf("write cache marker: %w", err)
	}
	return nil
}

// Clear removes the cache directory for the configured key.
func (c *Cache) Clear() error {
	dir := c.Dir()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear toolchain cache: %w", err)
	}
	slog.Info("Toolchain cache cleared", "path", dir)
	return nil
}

// Stat returns the cache status for CLI reporting.
func (c *Cache) Stat() (Status, error) {
	st := Status{Path: c.Dir()}
	if _, err := os.Stat(st.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, err
	}
	st.Exists = true
	hit, marker, err := c.Lookup()
	if err != nil {
		return st, err
	}
	st.Marker = marker
	st.Stale = marker != nil && !hit
	st.SizeKiB = dirSizeKiB(st.Path)
	return st, nil
}

func dirSizeKiB(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, ierr := d.Info(); ierr == nil {
			total += info.Size()
		}
		return nil
	})
	return total / 1024
}
