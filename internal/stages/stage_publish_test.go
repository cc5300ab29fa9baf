package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.home.luguber.info/inful/litebuilder/internal/checkout"
	"git.home.luguber.info/inful/litebuilder/internal/config"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/retry"
)

func publishState(t *testing.T, trigger pipeline.Trigger, deploy config.DeployConfig) *pipeline.BuildState {
	t.Helper()
	siteDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(siteDir, "index.html"), []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Deploy: deploy}
	bs := pipeline.NewBuildState(cfg, trigger)
	bs.SiteDir = siteDir
	return bs
}

func TestPublish_GateNotMetSkips(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	target := filepath.Join(t.TempDir(), "www")
	bs := publishState(t,
		pipeline.Trigger{Event: "schedule", Branch: "main"},
		config.DeployConfig{Event: "push", Branch: "main", LocalDir: target})

	if err := env.Publish(context.Background(), bs); err != nil {
		t.Fatalf("gated publish must not error: %v", err)
	}
	if bs.Published {
		t.Error("gated run must not publish")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("gated run must not write the deploy target")
	}
}

func TestPublish_NoTargetSkips(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	bs := publishState(t,
		pipeline.Trigger{Event: "push", Branch: "main"},
		config.DeployConfig{Event: "push", Branch: "main"})

	if err := env.Publish(context.Background(), bs); err != nil {
		t.Fatalf("publish without targets must not error: %v", err)
	}
	if bs.Published {
		t.Error("nothing was published")
	}
}

func TestPublish_LocalDir(t *testing.T) {
	env := NewEnv(nil, retry.DefaultPolicy())
	target := filepath.Join(t.TempDir(), "www")
	bs := publishState(t,
		pipeline.Trigger{Event: "push", Branch: "main"},
		config.DeployConfig{Event: "push", Branch: "main", LocalDir: target})

	if err := env.Publish(context.Background(), bs); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if !bs.Published || !bs.Report.Published {
		t.Error("publish must be recorded")
	}
	if bs.PublishURL != target {
		t.Errorf("expected publish url %q, got %q", target, bs.PublishURL)
	}
	if _, err := os.Stat(filepath.Join(target, "index.html")); err != nil {
		t.Errorf("site not deployed: %v", err)
	}
}

func TestWithPublishRetry_TransientThenSuccess(t *testing.T) {
	env := NewEnv(nil, retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 3))

	calls := 0
	err := env.withPublishRetry(context.Background(), "object_store", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestWithPublishRetry_PermanentShortCircuits(t *testing.T) {
	env := NewEnv(nil, retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5))

	calls := 0
	permanent := &checkout.AuthError{Op: "upload", URL: "s3.local", Err: errors.New("access denied")}
	err := env.withPublishRetry(context.Background(), "object_store", func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent error must not retry, got %d attempts", calls)
	}
}

func TestWithPublishRetry_Exhaustion(t *testing.T) {
	env := NewEnv(nil, retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2))

	calls := 0
	err := env.withPublishRetry(context.Background(), "object_store", func() error {
		calls++
		return errors.New("connection reset")
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}
