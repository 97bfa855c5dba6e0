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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAction func(ctx context.Context, params, runCtx map[string]any) (map[string]any, error)

type stubRegistry struct {
	mu      sync.Mutex
	actions map[string]stubAction
	calls   []string
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{actions: map[string]stubAction{}}
}

func (r *stubRegistry) register(name string, fn stubAction) {
	r.actions[name] = fn
}

func (r *stubRegistry) Has(actionType string) bool {
	_, ok := r.actions[actionType]
	return ok
}

func (r *stubRegistry) Execute(ctx context.Context, actionType string, params, runCtx map[string]any) (map[string]any, error) {
	r.mu.Lock()
	r.calls = append(r.calls, actionType)
	r.mu.Unlock()
	return r.actions[actionType](ctx, params, runCtx)
}

func (r *stubRegistry) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func testWorkflow(steps ...Step) *Workflow {
	return &Workflow{Name: "test", Steps: steps}
}

func TestExecutor_SuccessfulRun(t *testing.T) {
	reg := newStubRegistry()
	reg.register("fetch", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return map[string]any{"status": 200}, nil
	})
	reg.register("echo", func(_ context.Context, params, _ map[string]any) (map[string]any, error) {
		return map[string]any{"text": params["message"]}, nil
	})

	wf := testWorkflow(
		Step{ID: "one", Type: "fetch"},
		Step{ID: "two", Type: "echo", Params: map[string]any{"message": "code={{ one.status }}"}},
	)

	log := NewExecutor(reg).Run(context.Background(), wf, nil)

	require.Equal(t, StatusSuccess, log.Status)
	require.Len(t, log.Steps, 2)
	assert.Equal(t, StepSuccess, log.Steps[0].Status)
	assert.Equal(t, StepSuccess, log.Steps[1].Status)

	// earlier step output threads into later params
	assert.Equal(t, "code=200", log.Steps[1].Result["text"])

	// run identity and timestamps
	assert.Equal(t, "test", log.Workflow)
	assert.Regexp(t, `^\d{8}_\d{6}_[0-9a-f]{4}$`, log.RunID)
	_, err := time.Parse(time.RFC3339, log.StartedAt)
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, log.EndedAt)
	require.NoError(t, err)
	assert.Empty(t, log.Error)
}

func TestExecutor_StepFailureEndsRun(t *testing.T) {
	reg := newStubRegistry()
	reg.register("ok", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})
	reg.register("boom", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return nil, assert.AnError
	})

	wf := testWorkflow(
		Step{ID: "a", Type: "ok"},
		Step{ID: "b", Type: "boom"},
		Step{ID: "c", Type: "ok"},
	)

	log := NewExecutor(reg).Run(context.Background(), wf, nil)

	assert.Equal(t, StatusFailed, log.Status)
	require.Len(t, log.Steps, 2)
	assert.Equal(t, StepFailed, log.Steps[1].Status)
	assert.Equal(t, log.Steps[1].Error, log.Error)
	// the step after the failure never runs
	assert.Equal(t, 2, reg.callCount())
}

func TestExecutor_UnknownActionType(t *testing.T) {
	reg := newStubRegistry()
	wf := testWorkflow(Step{ID: "a", Type: "bogus"})

	log := NewExecutor(reg).Run(context.Background(), wf, nil)

	assert.Equal(t, StatusFailed, log.Status)
	require.Len(t, log.Steps, 1)
	assert.Equal(t, "Unknown action type: bogus", log.Steps[0].Error)
	assert.Equal(t, 0, reg.callCount())
}

func TestExecutor_ConditionSkip(t *testing.T) {
	reg := newStubRegistry()
	reg.register("fetch", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return map[string]any{"status": 500}, nil
	})
	var sawSkippedResult bool
	reg.register("check", func(_ context.Context, _, runCtx map[string]any) (map[string]any, error) {
		_, sawSkippedResult = runCtx["guarded"]
		return map[string]any{}, nil
	})

	wf := testWorkflow(
		Step{ID: "fetch", Type: "fetch"},
		Step{
			ID:   "guarded",
			Type: "check",
			When: &Condition{Step: "fetch", Field: "status", Equals: 200},
		},
		Step{ID: "after", Type: "check"},
	)

	log := NewExecutor(reg).Run(context.Background(), wf, nil)

	require.Equal(t, StatusSuccess, log.Status)
	require.Len(t, log.Steps, 3)

	skipped := log.Steps[1]
	assert.Equal(t, StepSkipped, skipped.Status)
	assert.Equal(t, SkipConditionNotMet, skipped.Result["reason"])
	when, ok := skipped.Result["when"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fetch", when["step"])
	assert.Equal(t, "status", when["field"])

	// the skipped step publishes nothing to the run context
	assert.False(t, sawSkippedResult)
	// and the run continues past it
	assert.Equal(t, StepSuccess, log.Steps[2].Status)
}

func TestExecutor_ConditionOnMissingStep(t *testing.T) {
	reg := newStubRegistry()
	reg.register("noop", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	wf := testWorkflow(
		Step{ID: "a", Type: "noop", When: &Condition{Step: "ghost", Equals: "x"}},
	)

	log := NewExecutor(reg).Run(context.Background(), wf, nil)

	require.Equal(t, StatusSuccess, log.Status)
	require.Len(t, log.Steps, 1)
	assert.Equal(t, StepSkipped, log.Steps[0].Status)
	assert.Equal(t, "condition_step_missing:ghost", log.Steps[0].Result["reason"])
}

func TestExecutor_StepTimeout(t *testing.T) {
	reg := newStubRegistry()
	reg.register("slow", func(ctx context.Context, _, _ map[string]any) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	wf := testWorkflow(Step{ID: "a", Type: "slow"})
	log := NewExecutor(reg).WithStepTimeout(50 * time.Millisecond).Run(context.Background(), wf, nil)

	assert.Equal(t, StatusFailed, log.Status)
	require.Len(t, log.Steps, 1)
	assert.Contains(t, log.Steps[0].Error, "timed out after")
}

func TestExecutor_CancelledBeforeStart(t *testing.T) {
	reg := newStubRegistry()
	reg.register("noop", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := NewExecutor(reg).Run(ctx, testWorkflow(Step{ID: "a", Type: "noop"}), nil)

	assert.Equal(t, StatusStopped, log.Status)
	assert.Equal(t, "cancelled", log.Error)
	assert.Empty(t, log.Steps)
	assert.NotEmpty(t, log.EndedAt)
}

func TestExecutor_CancelledMidStep(t *testing.T) {
	reg := newStubRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	reg.register("selfcancel", func(c context.Context, _, _ map[string]any) (map[string]any, error) {
		cancel()
		<-c.Done()
		return nil, c.Err()
	})

	wf := testWorkflow(
		Step{ID: "a", Type: "selfcancel"},
		Step{ID: "b", Type: "selfcancel"},
	)

	log := NewExecutor(reg).Run(ctx, wf, nil)

	// a cancel surfacing as a step error classifies the run as stopped
	assert.Equal(t, StatusStopped, log.Status)
	require.Len(t, log.Steps, 1)
	assert.Equal(t, StepFailed, log.Steps[0].Status)
}

func TestExecutor_SeedMerge(t *testing.T) {
	reg := newStubRegistry()
	var captured map[string]any
	reg.register("capture", func(_ context.Context, _, runCtx map[string]any) (map[string]any, error) {
		captured = map[string]any{}
		for k, v := range runCtx {
			captured[k] = v
		}
		return map[string]any{}, nil
	})

	wf := testWorkflow(Step{ID: "a", Type: "capture"})
	seed := map[string]any{
		"params":          map[string]any{"env": "prod"},
		ParamWorkflowName: "other",
	}

	log := NewExecutor(reg).Run(context.Background(), wf, seed)

	require.Equal(t, StatusSuccess, log.Status)
	assert.Equal(t, map[string]any{"env": "prod"}, captured["params"])
	assert.NotContains(t, captured, ParamWorkflowName)
	assert.Contains(t, captured, "run_id")
	assert.Contains(t, captured, "today")
}

func TestExecutor_NilResultPublishesEmptyMap(t *testing.T) {
	reg := newStubRegistry()
	reg.register("nilret", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return nil, nil
	})
	var sawEmpty bool
	reg.register("check", func(_ context.Context, _, runCtx map[string]any) (map[string]any, error) {
		m, ok := runCtx["a"].(map[string]any)
		sawEmpty = ok && len(m) == 0
		return map[string]any{}, nil
	})

	wf := testWorkflow(
		Step{ID: "a", Type: "nilret"},
		Step{ID: "b", Type: "check"},
	)

	log := NewExecutor(reg).Run(context.Background(), wf, nil)
	require.Equal(t, StatusSuccess, log.Status)
	assert.True(t, sawEmpty)
}

func TestExecutor_EventSequence(t *testing.T) {
	reg := newStubRegistry()
	reg.register("noop", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	emitter := NewEventEmitter(false)
	var mu sync.Mutex
	var sequence []EventType
	record := func(_ context.Context, ev *Event) error {
		mu.Lock()
		defer mu.Unlock()
		sequence = append(sequence, ev.Type)
		return nil
	}
	emitter.On(EventRunStarted, record)
	emitter.On(EventStepStarted, record)
	emitter.On(EventStepCompleted, record)
	emitter.On(EventRunFinished, record)

	wf := testWorkflow(Step{ID: "a", Type: "noop"})
	log := NewExecutor(reg).WithEmitter(emitter).Run(context.Background(), wf, nil)

	require.Equal(t, StatusSuccess, log.Status)
	assert.Equal(t, []EventType{
		EventRunStarted,
		EventStepStarted,
		EventStepCompleted,
		EventRunFinished,
	}, sequence)
}
