// Package daemon runs the pipeline as a long-lived service: cron-scheduled
// runs, config hot reload, Prometheus metrics, and NATS run notifications.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/litebuilder/internal/build"
	"git.home.luguber.info/inful/litebuilder/internal/config"
	"git.home.luguber.info/inful/litebuilder/internal/eventstore"
	"git.home.luguber.info/inful/litebuilder/internal/metrics"
	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
	"git.home.luguber.info/inful/litebuilder/internal/retry"
)

// Daemon coordinates scheduled and on-demand pipeline runs.
type Daemon struct {
	configPath string

	mu  sync.RWMutex
	cfg *config.Config

	service    *build.DefaultService
	recorder   *metrics.PrometheusRecorder
	registry   *prom.Registry
	events     eventstore.Store
	notifier   *Notifier
	scheduler  gocron.Scheduler
	cronJob    gocron.Job
	metricsSrv *MetricsServer
	watcher    *ConfigWatcher

	// runRequests holds at most one pending trigger; overlapping triggers
	// coalesce instead of piling up.
	runRequests chan pipeline.Trigger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a daemon for the given config file and its loaded contents.
func New(configPath string, cfg *config.Config) *Daemon {
	return &Daemon{
		configPath:  configPath,
		cfg:         cfg,
		runRequests: make(chan pipeline.Trigger, 1),
	}
}

// Start brings up all daemon components and returns once they are running.
func (d *Daemon) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)
	cfg := d.GetConfig()

	d.registry = prom.NewRegistry()
	d.recorder = metrics.NewPrometheusRecorder(d.registry)

	if cfg.Monitoring.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Monitoring.HistoryDB), 0o750); err != nil {
			return fmt.Errorf("failed to create history db directory: %w", err)
		}
		es, err := eventstore.NewSQLiteStore(cfg.Monitoring.HistoryDB)
		if err != nil {
			return fmt.Errorf("failed to open run-event store: %w", err)
		}
		d.events = es
	}

	d.service = build.NewService().
		WithRecorder(d.recorder).
		WithEventStore(d.events).
		WithRetryPolicy(retry.FromConfig(cfg.Retry))

	if cfg.Monitoring.NATSURL != "" {
		notifier, err := NewNotifier(cfg.Monitoring.NATSURL, cfg.Monitoring.NATSSubject)
		if err != nil {
			// Notifications are optional; the daemon stays usable without them.
			slog.Warn("NATS notifier unavailable", "error", err)
		} else {
			d.notifier = notifier
		}
	}

	if cfg.Monitoring.MetricsAddr != "" {
		d.metricsSrv = NewMetricsServer(cfg.Monitoring.MetricsAddr, d.registry)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.metricsSrv.Start(); err != nil {
				slog.Error("Metrics server stopped", "error", err)
			}
		}()
	}

	if err := d.startScheduler(cfg); err != nil {
		return err
	}

	watcher, err := NewConfigWatcher(d.configPath, cfg.Schedule.DebounceDuration(), d.ReloadConfig)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	d.watcher = watcher
	if err := d.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}

	d.wg.Add(1)
	go d.runLoop(ctx)

	slog.Info("Daemon started",
		"config", d.configPath,
		"cron", cfg.Schedule.Cron,
		"metrics_addr", cfg.Monitoring.MetricsAddr)
	return nil
}

func (d *Daemon) startScheduler(cfg *config.Config) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	d.scheduler = scheduler

	if cfg.Schedule.Cron != "" {
		job, err := scheduler.NewJob(
			gocron.CronJob(cfg.Schedule.Cron, len(splitCronFields(cfg.Schedule.Cron)) == 6),
			gocron.NewTask(d.scheduledRun),
			gocron.WithName("scheduled-run"),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule cron job: %w", err)
		}
		d.cronJob = job
		slog.Info("Scheduled periodic runs", "cron", cfg.Schedule.Cron)
	}

	scheduler.Start()
	return nil
}

// splitCronFields distinguishes 5-field from 6-field (with seconds) cron specs.
func splitCronFields(spec string) []string {
	return strings.Fields(spec)
}

// scheduledRun is invoked by gocron on each cron tick.
func (d *Daemon) scheduledRun() {
	cfg := d.GetConfig()
	trigger := pipeline.Trigger{Event: "schedule", Branch: cfg.Project.Branch}
	if !d.TriggerRun(trigger) {
		slog.Info("Scheduled run coalesced, previous trigger still pending")
	}
}

// TriggerRun enqueues a run. Returns false when a trigger is already pending,
// in which case the new one is dropped.
func (d *Daemon) TriggerRun(trigger pipeline.Trigger) bool {
	select {
	case d.runRequests <- trigger:
		return true
	default:
		return false
	}
}

// runLoop executes queued triggers one at a time.
func (d *Daemon) runLoop(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-d.runRequests:
			d.executeRun(ctx, trigger)
		}
	}
}

func (d *Daemon) executeRun(ctx context.Context, trigger pipeline.Trigger) {
	cfg := d.GetConfig()

	slog.Info("Starting pipeline run",
		"event", trigger.Event,
		"branch", trigger.Branch)

	result, err := d.service.Run(ctx, build.Request{
		Config:  cfg,
		Trigger: trigger,
	})
	if err != nil {
		slog.Error("Pipeline run failed", "error", err)
	}
	if result == nil {
		return
	}

	slog.Info("Pipeline run finished",
		"run_id", result.Report.RunID,
		"outcome", result.Outcome,
		"duration", result.Duration,
		"published", result.Published)

	if d.notifier != nil {
		if err := d.notifier.PublishRunFinished(trigger, result.Report, result.PublishURL); err != nil {
			slog.Warn("Failed to publish run notification", "error", err)
		}
	}
}

// GetConfig returns the current configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// ReloadConfig swaps in a new configuration and reschedules the cron job if
// the schedule changed. Monitoring endpoints keep their original addresses
// until restart.
func (d *Daemon) ReloadConfig(_ context.Context, newCfg *config.Config) error {
	d.mu.Lock()
	oldCron := d.cfg.Schedule.Cron
	d.cfg = newCfg
	d.mu.Unlock()

	d.service.WithRetryPolicy(retry.FromConfig(newCfg.Retry))

	if newCfg.Schedule.Cron == oldCron {
		return nil
	}

	if d.cronJob != nil {
		if err := d.scheduler.RemoveJob(d.cronJob.ID()); err != nil {
			slog.Warn("Failed to remove previous cron job", "error", err)
		}
		d.cronJob = nil
	}

	if newCfg.Schedule.Cron != "" {
		job, err := d.scheduler.NewJob(
			gocron.CronJob(newCfg.Schedule.Cron, len(splitCronFields(newCfg.Schedule.Cron)) == 6),
			gocron.NewTask(d.scheduledRun),
			gocron.WithName("scheduled-run"),
		)
		if err != nil {
			return fmt.Errorf("failed to reschedule cron job: %w", err)
		}
		d.cronJob = job
	}

	slog.Info("Rescheduled periodic runs", "cron", newCfg.Schedule.Cron)
	return nil
}

// Stop shuts down all daemon components, waiting for the active run to end.
func (d *Daemon) Stop(ctx context.Context) error {
	slog.Info("Stopping daemon")

	if d.cancel != nil {
		d.cancel()
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			slog.Warn("Failed to stop config watcher", "error", err)
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Shutdown(); err != nil {
			slog.Warn("Failed to shut down scheduler", "error", err)
		}
	}
	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			slog.Warn("Failed to shut down metrics server", "error", err)
		}
	}

	d.wg.Wait()

	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			slog.Warn("Failed to close notifier", "error", err)
		}
	}
	if d.events != nil {
		if err := d.events.Close(); err != nil {
			slog.Warn("Failed to close run-event store", "error", err)
		}
	}

	slog.Info("Daemon stopped")
	return nil
}
