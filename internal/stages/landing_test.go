package stages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/litebuilder/internal/config"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/retry"
)

func landingState(t *testing.T, readme string) (*pipeline.BuildState, string) {
	t.Helper()
	checkout := t.TempDir()
	siteDir := t.TempDir()
	if readme != "" {
		if err := os.WriteFile(filepath.Join(checkout, "README.md"), []byte(readme), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := &config.Config{}
	cfg.Project.Name = "compiler"
	cfg.Project.ReadmePath = "README.md"
	cfg.Site.Title = "Interactive Notebook Demo"

	bs := pipeline.NewBuildState(cfg, pipeline.Trigger{Event: "manual"})
	bs.CheckoutPath = checkout
	return bs, siteDir
}

func TestWriteLandingPage(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	bs, siteDir := landingState(t, "# Compiler\n\nTry the *notebooks* below.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")

	if err := env.writeLandingPage(bs, siteDir); err != nil {
		t.Fatalf("writeLandingPage() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(siteDir, "index.html"))
	if err != nil {
		t.Fatalf("landing page not written: %v", err)
	}
	page := string(data)

	if !strings.Contains(page, "<title>Interactive Notebook Demo</title>") {
		t.Error("missing site title")
	}
	if !strings.Contains(page, "<h1>Compiler</h1>") {
		t.Error("missing title-cased project heading")
	}
	if !strings.Contains(page, "<em>notebooks</em>") {
		t.Error("markdown body not rendered")
	}
	// Tables only render with the GFM extension enabled.
	if !strings.Contains(page, "<table>") {
		t.Error("GFM table not rendered")
	}
}

func TestWriteLandingPage_KeepsExistingIndex(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	bs, siteDir := landingState(t, "# Ignored")

	existing := []byte("<html>generated by the packager</html>")
	if err := os.WriteFile(filepath.Join(siteDir, "index.html"), existing, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := env.writeLandingPage(bs, siteDir); err != nil {
		t.Fatalf("writeLandingPage() failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(siteDir, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(existing) {
		t.Error("existing index.html must not be overwritten")
	}
}

func TestWriteLandingPage_MissingReadme(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	bs, siteDir := landingState(t, "")

	if err := env.writeLandingPage(bs, siteDir); err == nil {
		t.Error("expected error for missing README")
	}
}
