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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tombee/reprise/pkg/workflow/expression"
)

// DefaultStepTimeout bounds a single step's execution.
const DefaultStepTimeout = 300 * time.Second

// ActionRegistry resolves step types to runnable actions. The action
// package provides the builtin implementation.
type ActionRegistry interface {
	// Execute runs the action registered for actionType. Params arrive
	// fully rendered; runContext is the live run context, which actions
	// such as subworkflow read for chain tracking.
	//
	// Contract: return (result, nil) on success and (nil, err) on
	// failure. A nil result with a nil error is treated as an empty
	// result.
	Execute(ctx context.Context, actionType string, params map[string]any, runContext map[string]any) (map[string]any, error)

	// Has reports whether an action type is registered.
	Has(actionType string) bool
}

// Executor runs workflows step by step, threading results through the
// run context so later steps can reference earlier output.
type Executor struct {
	// registry resolves step types to actions
	registry ActionRegistry

	// engine renders params and evaluates template expressions
	engine *expression.Engine

	// logger for run and step logging
	logger *slog.Logger

	// location anchors run timestamps and the date built-ins
	location *time.Location

	// baseDir is exposed to steps as the base_dir built-in
	baseDir string

	// stepTimeout bounds each step's execution
	stepTimeout time.Duration

	// emitter receives run lifecycle events; may be nil
	emitter *EventEmitter
}

// NewExecutor creates a workflow executor.
func NewExecutor(registry ActionRegistry) *Executor {
	return &Executor{
		registry:    registry,
		engine:      expression.New(),
		logger:      slog.Default(),
		location:    time.Local,
		stepTimeout: DefaultStepTimeout,
	}
}

// WithLogger sets a custom logger for the executor.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	e.logger = logger
	e.engine = expression.NewWithLogger(logger)
	return e
}

// WithLocation sets the timezone for run timestamps and date built-ins.
func (e *Executor) WithLocation(loc *time.Location) *Executor {
	if loc != nil {
		e.location = loc
	}
	return e
}

// WithBaseDir sets the directory exposed to steps as base_dir.
func (e *Executor) WithBaseDir(dir string) *Executor {
	e.baseDir = dir
	return e
}

// WithStepTimeout sets the per-step execution timeout.
func (e *Executor) WithStepTimeout(d time.Duration) *Executor {
	if d > 0 {
		e.stepTimeout = d
	}
	return e
}

// WithEmitter sets the event emitter for run lifecycle events.
func (e *Executor) WithEmitter(emitter *EventEmitter) *Executor {
	e.emitter = emitter
	return e
}

// Engine returns the executor's expression engine, for callers that
// render templates outside a run.
func (e *Executor) Engine() *expression.Engine {
	return e.engine
}

// Location returns the timezone run timestamps are anchored to.
func (e *Executor) Location() *time.Location {
	return e.location
}

// Run executes the workflow's steps in order and returns the run log.
// Every run produces exactly one log, whatever happens inside it: step
// failures and cancellation are recorded there, never returned as
// errors.
//
// Steps run sequentially. A step whose when condition does not hold is
// recorded as skipped and the run continues; a failed step ends the run
// with status failed; cancellation through ctx ends it with status
// stopped. Successful step results are published to the run context
// under the step's ID.
//
// The seed map is merged over the run context built-ins before the
// first step, so a caller can inject params or propagate a parent run's
// state. Reserved nesting-control keys in the seed are dropped.
func (e *Executor) Run(ctx context.Context, wf *Workflow, seed map[string]any) *RunLog {
	return e.RunWithID(ctx, wf, seed, "")
}

// RunWithID executes a workflow under a caller-assigned run identifier.
// The run service assigns the ID before claiming the run slot so status
// queries can name the run from the start; an empty runID gets a fresh
// one.
func (e *Executor) RunWithID(ctx context.Context, wf *Workflow, seed map[string]any, runID string) *RunLog {
	now := time.Now().In(e.location)
	if runID == "" {
		runID = NewRunID(now)
	}
	runCtx := NewRunContext(runID, wf.Name, now, e.baseDir)
	MergeSeed(runCtx, seed)

	log := &RunLog{
		RunID:     runID,
		Workflow:  wf.Name,
		Status:    StatusRunning,
		StartedAt: now.Format(time.RFC3339),
		Steps:     []StepRecord{},
	}

	logger := e.logger.With("workflow", wf.Name, "run_id", runID)
	logger.Info("run started", "steps", len(wf.Steps))
	if e.emitter != nil {
		_ = e.emitter.EmitRunStarted(ctx, wf.Name, runID, len(wf.Steps))
	}

	for i := range wf.Steps {
		step := &wf.Steps[i]

		if ctx.Err() != nil {
			log.Status = StatusStopped
			log.Error = "cancelled"
			logger.Warn("run cancelled", "step", step.ID)
			break
		}

		if step.When != nil {
			if ok, reason := EvaluateCondition(step.When, runCtx); !ok {
				if reason == "" {
					reason = SkipConditionNotMet
				}
				record := StepRecord{
					ID:     step.ID,
					Type:   step.Type,
					Status: StepSkipped,
					Result: map[string]any{
						"reason": reason,
						"when":   step.When.AsMap(),
					},
				}
				log.Steps = append(log.Steps, record)
				logger.Info("step skipped", "step", step.ID, "reason", reason)
				if e.emitter != nil {
					_ = e.emitter.EmitStepCompleted(ctx, wf.Name, runID, &record, 0)
				}
				continue
			}
		}

		record := e.runStep(ctx, step, runCtx, logger)
		log.Steps = append(log.Steps, record)

		if record.Status == StepFailed {
			// a cancel arriving mid-step surfaces as a step error;
			// classify the run as stopped rather than failed
			if ctx.Err() != nil {
				log.Status = StatusStopped
			} else {
				log.Status = StatusFailed
			}
			log.Error = record.Error
			break
		}

		runCtx[step.ID] = record.Result
	}

	if log.Status == StatusRunning {
		log.Status = StatusSuccess
	}
	log.EndedAt = time.Now().In(e.location).Format(time.RFC3339)

	logger.Info("run finished", "status", log.Status, "duration", log.Duration().Round(time.Millisecond))
	if e.emitter != nil {
		_ = e.emitter.EmitRunFinished(ctx, log)
	}
	return log
}

// runStep executes a single step and returns its record. The record's
// status is success or failed; condition skips are handled by the
// caller.
func (e *Executor) runStep(ctx context.Context, step *Step, runCtx map[string]any, logger *slog.Logger) StepRecord {
	record := StepRecord{ID: step.ID, Type: step.Type}

	if !e.registry.Has(step.Type) {
		record.Status = StepFailed
		record.Error = fmt.Sprintf("Unknown action type: %s", step.Type)
		logger.Error("step failed", "step", step.ID, "type", step.Type, "error", record.Error)
		return record
	}

	logger.Info("step started", "step", step.ID, "type", step.Type)
	if e.emitter != nil {
		_ = e.emitter.Emit(ctx, &Event{
			Type:     EventStepStarted,
			Workflow: fmt.Sprint(runCtx["workflow"]),
			RunID:    fmt.Sprint(runCtx["run_id"]),
			Data:     map[string]any{"step": step.ID, "type": step.Type},
		})
	}

	params := e.engine.RenderParams(step.Params, runCtx)

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	started := time.Now()
	result, err := e.registry.Execute(stepCtx, step.Type, params, runCtx)
	duration := time.Since(started)

	if err != nil {
		record.Status = StepFailed
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			record.Error = fmt.Sprintf("Step execution timed out after %d seconds", int(e.stepTimeout.Seconds()))
		} else {
			record.Error = err.Error()
		}
		logger.Error("step failed", "step", step.ID, "type", step.Type,
			"error", record.Error, "duration", duration.Round(time.Millisecond))
	} else {
		if result == nil {
			result = map[string]any{}
		}
		record.Status = StepSuccess
		record.Result = result
		logger.Info("step completed", "step", step.ID, "type", step.Type,
			"duration", duration.Round(time.Millisecond))
	}

	if e.emitter != nil {
		wfName := fmt.Sprint(runCtx["workflow"])
		runID := fmt.Sprint(runCtx["run_id"])
		_ = e.emitter.EmitStepCompleted(ctx, wfName, runID, &record, duration)
	}
	return record
}
