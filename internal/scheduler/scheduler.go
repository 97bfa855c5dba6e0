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

// Package scheduler fires scheduled workflows from their cron triggers.
//
// One job is registered per enabled schedule-triggered workflow. The
// loop ticks every second in the configured timezone; a due job runs in
// its own goroutine through the run service, which reloads the
// definition so edits made after registration take effect. A separate
// internal job sweeps the run journal daily.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tombee/reprise/internal/journal"
	"github.com/tombee/reprise/internal/runner"
	"github.com/tombee/reprise/pkg/errors"
	"github.com/tombee/reprise/pkg/workflow"
)

// cleanupCron fires the journal retention sweep at 03:00 every day.
const cleanupCron = "0 3 * * *"

// job is one registered cron trigger.
type job struct {
	workflow string
	cron     string
	expr     *CronExpr
	next     time.Time
	lastRun  *time.Time
	runCount int64
}

// JobStatus describes one registered job for introspection.
type JobStatus struct {
	Workflow string     `json:"workflow"`
	Cron     string     `json:"cron"`
	NextRun  time.Time  `json:"next_run"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	RunCount int64      `json:"run_count"`
}

// Scheduler owns the cron timer and the registered jobs.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*job
	service  *runner.Service
	journal  *journal.Journal
	location *time.Location
	logger   *slog.Logger

	retentionDays int
	cleanupExpr   *CronExpr
	cleanupNext   time.Time

	// onFire observes every firing, busy or not. Used for metrics.
	onFire func(workflow string)

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a scheduler dispatching through the run service. All cron
// evaluation happens in loc; individual workflows cannot override it.
func New(service *runner.Service, j *journal.Journal, loc *time.Location, retentionDays int, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	cleanupExpr, _ := ParseCron(cleanupCron)
	return &Scheduler{
		jobs:          make(map[string]*job),
		service:       service,
		journal:       j,
		location:      loc,
		logger:        logger.With("component", "scheduler"),
		retentionDays: retentionDays,
		cleanupExpr:   cleanupExpr,
	}
}

// OnFire installs an observer called for every firing before dispatch.
// Must be set before Start.
func (s *Scheduler) OnFire(fn func(workflow string)) {
	s.onFire = fn
}

// Register compiles the workflow's cron trigger and adds (or replaces)
// its job. Non-scheduled or disabled workflows are rejected; the caller
// decides whether that is worth a warning.
func (s *Scheduler) Register(wf *workflow.Workflow) error {
	if wf.Trigger.Type != workflow.TriggerSchedule {
		return fmt.Errorf("workflow %q has no schedule trigger", wf.Name)
	}
	if !wf.IsEnabled() {
		return fmt.Errorf("workflow %q is disabled", wf.Name)
	}

	expr, err := ParseCron(wf.Trigger.Cron)
	if err != nil {
		return err
	}

	now := time.Now().In(s.location)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[wf.Name] = &job{
		workflow: wf.Name,
		cron:     wf.Trigger.Cron,
		expr:     expr,
		next:     expr.Next(now),
	}
	return nil
}

// Unregister removes the job for a workflow, if one exists.
func (s *Scheduler) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, name)
}

// RegisterAll walks the workflow directory and registers every enabled
// schedule-triggered workflow. Invalid definitions and unparseable cron
// expressions are skipped with a warning. Returns the registered count.
func (s *Scheduler) RegisterAll() int {
	count := 0
	for _, summary := range s.service.Loader().List() {
		if !summary.Valid {
			s.logger.Warn("skipping invalid workflow", "workflow", summary.Name, "error", summary.Error)
			continue
		}
		if summary.TriggerType != string(workflow.TriggerSchedule) || !summary.Enabled {
			continue
		}
		wf, loadErr := s.service.Loader().Load(summary.Name)
		if loadErr != nil {
			s.logger.Warn("skipping workflow", "workflow", summary.Name, "error", loadErr)
			continue
		}
		if err := s.Register(wf); err != nil {
			s.logger.Warn("skipping workflow with invalid cron",
				"workflow", wf.Name, "cron", wf.Trigger.Cron, "error", err)
			continue
		}
		count++
	}
	s.logger.Info("registered scheduled workflows", "count", count)
	return count
}

// Reload drops every workflow job and re-walks the directory. Returns
// the number of re-registered jobs.
func (s *Scheduler) Reload() int {
	s.mu.Lock()
	s.jobs = make(map[string]*job)
	s.mu.Unlock()
	return s.RegisterAll()
}

// Jobs returns the registered jobs sorted by workflow name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, jb := range s.jobs {
		statuses = append(statuses, JobStatus{
			Workflow: jb.workflow,
			Cron:     jb.cron,
			NextRun:  jb.next,
			LastRun:  jb.lastRun,
			RunCount: jb.runCount,
		})
	}
	sort.Slice(statuses, func(a, b int) bool {
		return statuses[a].Workflow < statuses[b].Workflow
	})
	return statuses
}

// Preview returns the next n firing times of a cron expression from
// now, in the configured timezone.
func (s *Scheduler) Preview(cron string, n int) ([]time.Time, error) {
	expr, err := ParseCron(cron)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		n = 1
	}
	return expr.NextN(time.Now().In(s.location), n), nil
}

// Start launches the dispatch loop. Idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	if s.cleanupExpr != nil {
		s.cleanupNext = s.cleanupExpr.Next(time.Now().In(s.location))
	}
	s.mu.Unlock()

	s.logger.Info("scheduler started")
	go s.loop(ctx)
}

// Stop halts the dispatch loop without waiting for in-flight runs;
// those rely on the executor's cooperative cancellation. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case tick := <-ticker.C:
			s.tick(ctx, tick.In(s.location))
		}
	}
}

// tick fires every due job and reschedules it.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []string
	for _, jb := range s.jobs {
		if jb.next.IsZero() || now.Before(jb.next) {
			continue
		}
		due = append(due, jb.workflow)
		jb.next = jb.expr.Next(now)
		fired := now
		jb.lastRun = &fired
		jb.runCount++
	}

	cleanupDue := !s.cleanupNext.IsZero() && !now.Before(s.cleanupNext)
	if cleanupDue {
		s.cleanupNext = s.cleanupExpr.Next(now)
	}
	s.mu.Unlock()

	for _, name := range due {
		go s.dispatch(ctx, name)
	}
	if cleanupDue {
		go s.sweepJournal()
	}
}

// dispatch runs one fired workflow. The run service reloads the
// definition, so edits made since registration take effect here, and it
// journals the outcome. Errors never stop the scheduler; a busy slot
// just drops the firing.
func (s *Scheduler) dispatch(ctx context.Context, name string) {
	logger := s.logger.With("workflow", name)
	logger.Info("firing scheduled workflow")

	if s.onFire != nil {
		s.onFire(name)
	}

	log, err := s.service.Run(ctx, name, nil)
	switch {
	case errors.Is(err, errors.ErrAlreadyRunning):
		logger.Warn("skipping scheduled run, previous run still live")
	case err != nil:
		logger.Error("scheduled run failed to start", "error", err)
	default:
		logger.Info("scheduled run finished", "run_id", log.RunID, "status", log.Status)
	}
}

// sweepJournal runs the daily retention cleanup.
func (s *Scheduler) sweepJournal() {
	if s.journal == nil {
		return
	}
	result, err := s.journal.Cleanup(s.retentionDays)
	if err != nil {
		s.logger.Error("journal retention sweep failed", "error", err)
		return
	}
	s.logger.Info("journal retention sweep finished",
		"deleted", result.DeletedCount, "kept", result.KeptCount,
		"deleted_bytes", result.DeletedBytes, "cutoff", result.Cutoff)
}
