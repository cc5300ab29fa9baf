package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/litebuilder/internal/build"
	"git.home.luguber.info/inful/litebuilder/internal/config"
	"git.home.luguber.info/inful/litebuilder/internal/daemon"
	"git.home.luguber.info/inful/litebuilder/internal/eventstore"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/retry"
	"git.home.luguber.info/inful/litebuilder/internal/toolchain"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"litebuilder.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Event       string `short:"e" help:"Trigger event type" default:"manual" enum:"push,schedule,manual"`
		Ref         string `short:"r" help:"Branch the run is triggered for (defaults to the configured project branch)"`
		Output      string `short:"o" help:"Output directory for the assembled site"`
		Incremental bool   `short:"i" help:"Reuse the persistent workspace and update the existing checkout"`
		Workspace   string `short:"w" help:"Parent directory for the workspace"`
	} `cmd:"" help:"Run the full pipeline: checkout, toolchain, assemble, verify, package, publish"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Cache struct {
		Status struct{} `cmd:"" help:"Show toolchain cache status"`
		Clear  struct{} `cmd:"" help:"Remove the cached toolchain"`
	} `cmd:"" help:"Manage the toolchain cache"`

	History struct {
		RunID   string `short:"r" help:"Show events for a specific run"`
		Since   string `help:"Show runs finished since this duration ago" default:"24h"`
		Outcome string `help:"Only show runs with this outcome (success, warning, failed, canceled)"`
		Limit   int    `short:"n" help:"Maximum number of runs to show" default:"20"`
	} `cmd:"" help:"Show recorded runs and their events"`

	Daemon struct{} `cmd:"" help:"Run as a daemon: scheduled runs, config reload, metrics"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild()
	case "init":
		err = config.Init(CLI.Config, CLI.Init.Force)
	case "cache status":
		err = runCacheStatus()
	case "cache clear":
		err = runCacheClear()
	case "history":
		err = runHistory()
	case "daemon":
		err = runDaemon()
	default:
		err = fmt.Errorf("unknown command: %s", ctx.Command())
	}

	if err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}

func runBuild() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	branch := CLI.Build.Ref
	if branch == "" {
		branch = cfg.Project.Branch
	}
	trigger := pipeline.Trigger{Event: CLI.Build.Event, Branch: branch}

	slog.Info("Starting pipeline run",
		"event", trigger.Event,
		"branch", trigger.Branch,
		"incremental", CLI.Build.Incremental)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	service := build.NewService().WithRetryPolicy(retry.FromConfig(cfg.Retry))
	if cfg.Monitoring.HistoryDB != "" {
		if es, eserr := openEventStore(cfg.Monitoring.HistoryDB); eserr != nil {
			slog.Warn("Run-event store unavailable", "error", eserr)
		} else {
			defer es.Close()
			service = service.WithEventStore(es)
		}
	}

	result, err := service.Run(ctx, build.Request{
		Config:        cfg,
		Trigger:       trigger,
		OutputDir:     CLI.Build.Output,
		Incremental:   CLI.Build.Incremental,
		WorkspaceBase: CLI.Build.Workspace,
	})
	if result != nil {
		slog.Info("Pipeline run finished",
			"run_id", result.Report.RunID,
			"outcome", result.Outcome,
			"duration", result.Duration,
			"cache_hit", result.Report.CacheHit,
			"published", result.Published)
		if result.Published {
			slog.Info("Site published", "url", result.PublishURL)
		}
		if result.Artifact != nil {
			slog.Info("Artifact packaged",
				"path", result.Artifact.Path,
				"sha256", result.Artifact.Hash,
				"size_bytes", result.Artifact.SizeBytes)
		}
	}
	return err
}

func runCacheStatus() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	status, err := toolchain.NewCache(cfg.Toolchain).Stat()
	if err != nil {
		return err
	}

	fmt.Printf("Path:    %s\n", status.Path)
	fmt.Printf("Exists:  %v\n", status.Exists)
	if status.Marker != nil {
		fmt.Printf("Key:     %s\n", status.Marker.Key)
		fmt.Printf("Tag:     %s\n", status.Marker.Tag)
		fmt.Printf("Head:    %s\n", status.Marker.Head)
		fmt.Printf("Updated: %s\n", status.Marker.UpdatedAt.Format(time.RFC3339))
	}
	fmt.Printf("Stale:   %v\n", status.Stale)
	fmt.Printf("Size:    %d KiB\n", status.SizeKiB)
	return nil
}

func runCacheClear() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	cache := toolchain.NewCache(cfg.Toolchain)
	if err := cache.Clear(); err != nil {
		return err
	}
	slog.Info("Toolchain cache cleared", "path", cache.Dir())
	return nil
}

func runHistory() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Monitoring.HistoryDB == "" {
		return fmt.Errorf("run-event store is disabled (monitoring.history_db is empty)")
	}

	es, err := eventstore.NewSQLiteStore(cfg.Monitoring.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open run-event store: %w", err)
	}
	defer es.Close()

	ctx := context.Background()
	if CLI.History.RunID != "" {
		events, err := es.GetByRunID(ctx, CLI.History.RunID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events recorded for this run.")
			return nil
		}
		for _, ev := range events {
			fmt.Printf("%s  %-16s  %s\n",
				ev.Timestamp.Format(time.RFC3339),
				ev.Type,
				string(ev.Payload))
		}
		return nil
	}

	since, perr := time.ParseDuration(CLI.History.Since)
	if perr != nil {
		return fmt.Errorf("invalid --since duration: %w", perr)
	}
	runs, err := es.Runs(ctx, time.Now().Add(-since), CLI.History.Outcome, CLI.History.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("%s  %-36s  %-8s  cache_hit=%-5v published=%-5v  %s\n",
			run.FinishedAt.Format(time.RFC3339),
			run.RunID,
			run.Outcome,
			run.CacheHit,
			run.Published,
			run.Duration.Round(time.Millisecond))
	}
	return nil
}

func runDaemon() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d := daemon.New(CLI.Config, cfg)
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	slog.Info("Daemon running, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return d.Stop(stopCtx)
}

func openEventStore(dbPath string) (eventstore.Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, err
	}
	return eventstore.NewSQLiteStore(dbPath)
}
