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

package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/tombee/reprise/internal/journal"
	"github.com/tombee/reprise/pkg/errors"
	"github.com/tombee/reprise/pkg/workflow"
)

// aiGenerateType is the action type whose first-step prompt parameter a
// manual trigger may override.
const aiGenerateType = "ai_generate"

// stop grace window: a stop arriving immediately after a run start may
// observe the slot before the run claimed it, so re-check briefly.
const (
	stopGraceAttempts = 10
	stopGraceInterval = 100 * time.Millisecond
)

// RunOptions tune a single manual invocation.
type RunOptions struct {
	// Prompt substitutes the first step's prompt parameter, honored
	// only when that step's type is ai_generate.
	Prompt string

	// Inputs are seeded into the run context before the first step.
	Inputs map[string]any

	// StepTimeout overrides the per-step deadline for this run only.
	StepTimeout time.Duration
}

// Service drives manual and scheduled runs: it loads the definition,
// claims the run slot, executes, and journals the outcome on every exit
// path. It is also the nested-run entry point for the subworkflow
// action.
type Service struct {
	loader   *workflow.Loader
	executor *workflow.Executor
	journal  *journal.Journal
	manager  *Manager
	logger   *slog.Logger
}

// NewService assembles the run service.
func NewService(loader *workflow.Loader, executor *workflow.Executor, j *journal.Journal, m *Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loader:   loader,
		executor: executor,
		journal:  j,
		manager:  m,
		logger:   logger.With("component", "runner"),
	}
}

// Manager exposes the run manager for status and stop endpoints.
func (s *Service) Manager() *Manager {
	return s.manager
}

// Loader exposes the workflow loader.
func (s *Service) Loader() *workflow.Loader {
	return s.loader
}

// Journal exposes the run journal.
func (s *Service) Journal() *journal.Journal {
	return s.journal
}

// Run executes the named workflow once and returns its run log.
//
// Failures before the run starts are returned as errors: a *LoadError
// when the definition cannot be loaded, ErrAlreadyRunning when a run is
// live under the same name. Everything that happens inside the run ends
// up in the returned RunLog instead, which is journaled on every path.
func (s *Service) Run(ctx context.Context, name string, opts *RunOptions) (*workflow.RunLog, error) {
	if opts == nil {
		opts = &RunOptions{}
	}

	wf, loadErr := s.loader.Load(name)
	if loadErr != nil {
		return nil, loadErr
	}

	wf = applyPromptOverride(wf, opts.Prompt)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the ID is assigned before the slot claim so status queries can
	// name the run from the moment it is visible
	runID := workflow.NewRunID(time.Now().In(s.executor.Location()))
	if _, ok := s.manager.Register(wf.Name, runID, cancel); !ok {
		return nil, errors.ErrAlreadyRunning
	}
	defer s.manager.Unregister(wf.Name)

	executor := s.executor
	if opts.StepTimeout > 0 {
		// per-call deadline: run on a shallow copy so the shared
		// executor keeps its configured timeout
		clone := *s.executor
		executor = clone.WithStepTimeout(opts.StepTimeout)
	}

	log := executor.RunWithID(runCtx, wf, opts.Inputs, runID)
	s.persist(log)
	return log, nil
}

// RunNested executes a workflow on behalf of the subworkflow action.
// The seed carries the forwarded parameters and the extended call
// chain. Nested runs bypass the run-slot check: the parent already
// holds its own slot and cycle detection bounds the nesting.
func (s *Service) RunNested(ctx context.Context, name string, seed map[string]any) (*workflow.RunLog, error) {
	wf, loadErr := s.loader.Load(name)
	if loadErr != nil {
		return nil, loadErr
	}

	log := s.executor.Run(ctx, wf, seed)
	s.persist(log)
	return log, nil
}

// Stop cancels the live run of a workflow. A stop that races a run
// start re-checks for a short grace window before giving up with
// ErrNotRunning.
func (s *Service) Stop(name string) error {
	for attempt := 0; attempt < stopGraceAttempts; attempt++ {
		if s.manager.Cancel(name) {
			s.logger.Info("run cancelled", "workflow", name)
			return nil
		}
		time.Sleep(stopGraceInterval)
	}
	return errors.ErrNotRunning
}

// persist appends the run log to the journal. Journal trouble is logged
// and swallowed: the run already ran, losing its record must not fail
// the caller.
func (s *Service) persist(log *workflow.RunLog) {
	if s.journal == nil || log == nil {
		return
	}
	if err := s.journal.Append(log); err != nil {
		s.logger.Error("failed to journal run",
			"workflow", log.Workflow, "run_id", log.RunID, "error", err)
	}
}

// applyPromptOverride returns the workflow with the first step's prompt
// parameter replaced, when the override applies. The original workflow
// is never mutated; loaders may cache definitions.
func applyPromptOverride(wf *workflow.Workflow, prompt string) *workflow.Workflow {
	if prompt == "" || len(wf.Steps) == 0 || wf.Steps[0].Type != aiGenerateType {
		return wf
	}

	clone := *wf
	clone.Steps = make([]workflow.Step, len(wf.Steps))
	copy(clone.Steps, wf.Steps)

	params := make(map[string]any, len(wf.Steps[0].Params)+1)
	for k, v := range wf.Steps[0].Params {
		params[k] = v
	}
	params["prompt"] = prompt
	clone.Steps[0].Params = params
	return &clone
}
