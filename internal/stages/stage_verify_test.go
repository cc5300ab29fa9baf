package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/litebuilder/internal/config"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/retry"
)

func verifyState(t *testing.T, pages map[string]string) *pipeline.BuildState {
	t.Helper()
	siteDir := t.TempDir()
	for name, content := range pages {
		path := filepath.Join(siteDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	bs := pipeline.NewBuildState(&config.Config{}, pipeline.Trigger{Event: "manual"})
	bs.SiteDir = siteDir
	return bs
}

func TestVerify_CleanSite(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	bs := verifyState(t, map[string]string{
		"index.html":          `<a href="notebooks/demo.html">demo</a><a href="https://external.example/x">out</a>`,
		"notebooks/demo.html": `<a href="../index.html">home</a>`,
	})

	if err := env.Verify(context.Background(), bs); err != nil {
		t.Errorf("Verify() on a clean site failed: %v", err)
	}
}

func TestVerify_BrokenLinksWarn(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	bs := verifyState(t, map[string]string{
		"index.html": `<a href="missing.html">gone</a><img src="img/nope.png">`,
	})

	err := env.Verify(context.Background(), bs)
	if err == nil {
		t.Fatal("expected warning for broken links")
	}
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StageError, got %T", err)
	}
	if se.Kind != pipeline.StageErrorWarning {
		t.Errorf("broken links must warn, not %s", se.Kind)
	}
	if !strings.Contains(err.Error(), "2 broken local links") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestVerify_DirectoryLinkServedByIndex(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	bs := verifyState(t, map[string]string{
		"index.html":          `<a href="/notebooks/">notebooks</a>`,
		"notebooks/index.html": `ok`,
	})

	if err := env.Verify(context.Background(), bs); err != nil {
		t.Errorf("directory link with index.html must verify: %v", err)
	}
}

func TestVerify_MissingSiteDirIsFatal(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	bs := pipeline.NewBuildState(&config.Config{}, pipeline.Trigger{Event: "manual"})

	err := env.Verify(context.Background(), bs)
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Kind != pipeline.StageErrorFatal {
		t.Errorf("expected fatal error without a site dir, got %v", err)
	}
}
