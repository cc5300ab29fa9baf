package publish

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLocalDirPublisher_FirstPublish(t *testing.T) {
	site := writeTree(t, map[string]string{
		"index.html":          "home",
		"notebooks/demo.html": "demo",
	})
	target := filepath.Join(t.TempDir(), "www", "site")

	if err := NewLocalDirPublisher(target).Publish(site); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	for name, want := range map[string]string{
		"index.html":          "home",
		"notebooks/demo.html": "demo",
	} {
		data, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("missing published file %s: %v", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("file %s: got %q, want %q", name, data, want)
		}
	}
}

func TestLocalDirPublisher_ReplacesPreviousDeployment(t *testing.T) {
	target := filepath.Join(t.TempDir(), "site")

	first := writeTree(t, map[string]string{"index.html": "v1", "old-page.html": "stale"})
	if err := NewLocalDirPublisher(target).Publish(first); err != nil {
		t.Fatal(err)
	}

	second := writeTree(t, map[string]string{"index.html": "v2"})
	if err := NewLocalDirPublisher(target).Publish(second); err != nil {
		t.Fatalf("second Publish() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(target, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Errorf("expected new content, got %q", data)
	}
	// Files from the previous deployment must not linger.
	if _, err := os.Stat(filepath.Join(target, "old-page.html")); !os.IsNotExist(err) {
		t.Error("stale file from previous deployment still present")
	}
	// The retired tree is cleaned up after the swap.
	if _, err := os.Stat(target + ".old"); !os.IsNotExist(err) {
		t.Error("retired deployment directory not removed")
	}
}

func TestLocalDirPublisher_NoStagingLeftovers(t *testing.T) {
	parent := t.TempDir()
	target := filepath.Join(parent, "site")
	site := writeTree(t, map[string]string{"index.html": "x"})

	if err := NewLocalDirPublisher(target).Publish(site); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "site" {
			t.Errorf("unexpected leftover in parent: %s", e.Name())
		}
	}
}
