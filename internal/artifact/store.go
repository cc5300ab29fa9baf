package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Manifest describes one stored artifact.
type Manifest struct {
	RunID     string    `json:"run_id"`
	Path      string    `json:"path"`
	Hash      string    `json:"hash"`
	SizeBytes int64     `json:"size_bytes"`
	Commit    string    `json:"commit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps artifacts and their manifests under a base directory:
//
//	<base>/
//	  archives/ <runID>.tar.gz
//	  manifests/ <runID>.json
type Store struct {
	basePath string
	mu       sync.RWMutex
}

// NewStore creates the store directory layout.
func NewStore(basePath string) (*Store, error) {
	for _, dir := range []string{
		filepath.Join(basePath, "archives"),
		filepath.Join(basePath, "manifests"),
	} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &Store{basePath: basePath}, nil
}

// ArchiveDir returns the directory archives are packaged into.
func (s *Store) ArchiveDir() string { return filepath.Join(s.basePath, "archives") }

// Record persists the manifest for a packaged artifact.
func (s *Store) Record(m Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.RunID == "" {
		return fmt.Errorf("manifest requires a run id")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := s.manifestPath(m.RunID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Get loads the manifest for a run ID.
func (s *Store) Get(runID string) (Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.manifestPath(runID))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s: %w", runID, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", runID, err)
	}
	return m, nil
}

// List returns all manifests, newest first.
func (s *Store) List() ([]Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.basePath, "manifests"))
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	manifests := make([]Manifest, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.basePath, "manifests", entry.Name()))
		if err != nil {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].CreatedAt.After(manifests[j].CreatedAt) })
	return manifests, nil
}

// Delete removes an artifact and its manifest.
func (s *Store) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.getLocked(runID)
	if err == nil && m.Path != "" {
		_ = os.Remove(m.Path)
	}
	if err := os.Remove(s.manifestPath(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete manifest %s: %w", runID, err)
	}
	return nil
}

// Prune keeps the newest `keep` artifacts and deletes the rest.
// keep <= 0 means keep everything.
func (s *Store) Prune(keep int) (removed int, err error) {
	if keep <= 0 {
		return 0, nil
	}
	manifests, err := s.List()
	if err != nil {
		return 0, err
	}
	for _, m := range manifests[min(keep, len(manifests)):] {
		if derr := s.Delete(m.RunID); derr != nil {
			return removed, derr
		}
		removed++
	}
	return removed, nil
}

func (s *Store) getLocked(runID string) (Manifest, error) {
	data, err := os.ReadFile(s.manifestPath(runID))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (s *Store) manifestPath(runID string) string {
	return filepath.Join(s.basePath, "manifests", SanitizeName(runID)+".json")
}
