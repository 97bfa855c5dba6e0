// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package daemon assembles and runs the reprise engine: scheduler,
// run service, workflow watcher and the HTTP API, wired from one
// configuration.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tombee/reprise/internal/action/builtin"
	"github.com/tombee/reprise/internal/backup"
	"github.com/tombee/reprise/internal/config"
	"github.com/tombee/reprise/internal/daemon/api"
	"github.com/tombee/reprise/internal/daemon/auth"
	"github.com/tombee/reprise/internal/journal"
	"github.com/tombee/reprise/internal/metrics"
	"github.com/tombee/reprise/internal/runner"
	"github.com/tombee/reprise/internal/scheduler"
	"github.com/tombee/reprise/internal/secrets"
	"github.com/tombee/reprise/internal/tracing"
	"github.com/tombee/reprise/internal/watcher"
	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/workflow"
)

// shutdownTimeout bounds the drain of in-flight requests and runs.
const shutdownTimeout = 30 * time.Second

// Options tune daemon assembly beyond the config file.
type Options struct {
	// Version identifies the build in /v1/version.
	Version api.Version

	// DisableWatcher turns off the workflow directory watcher.
	DisableWatcher bool
}

// Daemon is a fully assembled engine instance.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	runner    *runner.Service
	scheduler *scheduler.Scheduler
	watcher   *watcher.Watcher
	collector *metrics.Collector
	tracing   *tracing.Provider
	server    *http.Server
}

// New assembles a daemon from configuration. Nothing starts until Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	loc := cfg.Location()

	collector := metrics.NewCollector()
	traceProvider, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     cfg.Observability.Enabled,
		ServiceName: cfg.Observability.ServiceName,
		Exporter:    cfg.Observability.Exporter,
		Endpoint:    cfg.Observability.Endpoint,
	}, collector.Registry())
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	emitter := workflow.NewEventEmitter(false)
	collector.Attach(emitter)

	if traceProvider.Enabled() {
		spans, err := tracing.NewSpanListener(
			traceProvider.Tracer("reprise/run"),
			traceProvider.Meter("reprise/run"))
		if err != nil {
			return nil, fmt.Errorf("initializing span listener: %w", err)
		}
		spans.Attach(emitter)
	}

	resolver := secrets.NewDefaultResolver(cfg.SecretsDir, logger)

	reg := action.NewRegistry()
	executor := workflow.NewExecutor(reg).
		WithLogger(logger).
		WithLocation(loc).
		WithBaseDir(cfg.BaseDir).
		WithStepTimeout(cfg.StepTimeout).
		WithEmitter(emitter)

	loader := workflow.NewLoader(cfg.WorkflowsDir)
	j := journal.New(cfg.RunsDir, loc, logger)
	backups := backup.NewManager(cfg.BackupsDir, cfg.MaxBackups, loc)

	service := runner.NewService(loader, executor, j, runner.NewManager(), logger)

	// the subworkflow action needs the service, which needs the
	// executor's registry; register builtins after both exist
	builtin.Register(reg, builtin.Deps{
		Logger:  logger,
		Secrets: resolver,
		AI:      cfg.AI,
		Runner:  service,
	})

	sched := scheduler.New(service, j, loc, cfg.RetentionDays, logger)
	sched.OnFire(collector.RecordSchedulerFire)

	var w *watcher.Watcher
	if !opts.DisableWatcher {
		w, err = watcher.New(watcher.Config{
			Dir:      cfg.WorkflowsDir,
			Reloader: sched,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing workflow watcher: %w", err)
		}
	}

	handler := api.NewHandler(api.Config{
		Runner:    service,
		Scheduler: sched,
		Backups:   backups,
		Version:   opts.Version,
		Metrics:   collector.Handler(),
		Logger:    logger,
	})

	limiter := auth.NewRateLimiter(auth.RateLimitConfig{Enabled: cfg.APIToken != ""})

	var root http.Handler = handler.Routes()
	root = handler.Middleware(root)
	root = limiter.Middleware(root)
	root = auth.Middleware(cfg.APIToken, root)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Daemon{
		cfg:       cfg,
		logger:    logger.With("component", "daemon"),
		runner:    service,
		scheduler: sched,
		watcher:   w,
		collector: collector,
		tracing:   traceProvider,
		server:    server,
	}, nil
}

// Scheduler exposes the scheduler, mainly for tests.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.scheduler
}

// Runner exposes the run service, mainly for tests.
func (d *Daemon) Runner() *runner.Service {
	return d.runner
}

// Run starts everything and blocks until ctx is cancelled, then shuts
// down in order: scheduler stop, run drain, server close.
func (d *Daemon) Run(ctx context.Context) error {
	count := d.scheduler.RegisterAll()
	d.logger.Info("daemon starting",
		"listen", d.cfg.Listen,
		"workflows_dir", d.cfg.WorkflowsDir,
		"scheduled", count,
		"timezone", d.cfg.Timezone)

	d.scheduler.Start(ctx)
	if d.watcher != nil {
		d.watcher.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		d.shutdown()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		d.logger.Info("shutdown requested")
		d.shutdown()
		return nil
	}
}

func (d *Daemon) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// stop scheduling first so no new runs start while draining
	d.scheduler.Stop()
	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.logger.Warn("watcher close failed", "error", err)
		}
	}

	d.drainRuns(ctx)

	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Warn("http server shutdown failed", "error", err)
	}
	if err := d.tracing.Shutdown(ctx); err != nil {
		d.logger.Warn("tracing shutdown failed", "error", err)
	}
	d.logger.Info("daemon stopped")
}

// drainRuns cancels live runs and waits briefly for them to unwind.
func (d *Daemon) drainRuns(ctx context.Context) {
	manager := d.runner.Manager()
	for _, name := range manager.Running() {
		d.logger.Info("cancelling live run for shutdown", "workflow", name)
		manager.Cancel(name)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if len(manager.Running()) == 0 {
			return
		}
		select {
		case <-ctx.Done():
			d.logger.Warn("shutdown drain timed out", "still_running", manager.Running())
			return
		case <-ticker.C:
		}
	}
}
