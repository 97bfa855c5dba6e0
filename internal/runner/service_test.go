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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/reprise/internal/journal"
	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/errors"
	"github.com/tombee/reprise/pkg/workflow"
)

func testService(t *testing.T, reg *action.Registry) *Service {
	t.Helper()
	dir := t.TempDir()
	loader := workflow.NewLoader(filepath.Join(dir, "workflows"))
	j := journal.New(filepath.Join(dir, "runs"), time.UTC, nil)
	executor := workflow.NewExecutor(reg).WithLocation(time.UTC)
	return NewService(loader, executor, j, NewManager(), nil)
}

func writeWorkflow(t *testing.T, s *Service, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(s.Loader().Dir(), 0o755))
	path := filepath.Join(s.Loader().Dir(), name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func echoRegistry(t *testing.T) *action.Registry {
	t.Helper()
	reg := action.NewRegistry()
	reg.Register("log", action.HandlerFunc(func(_ context.Context, params, _ map[string]any) (map[string]any, error) {
		msg, _ := params["message"].(string)
		return map[string]any{"text": msg}, nil
	}), nil)
	return reg
}

func TestRunProducesJournaledLog(t *testing.T) {
	s := testService(t, echoRegistry(t))
	writeWorkflow(t, s, "hello", `
name: hello
trigger:
  type: manual
steps:
  - id: step1
    type: log
    params:
      message: hi
`)

	log, err := s.Run(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, workflow.StatusSuccess, log.Status)

	runs := s.Journal().RunsFor("hello", 0, 0)
	require.Len(t, runs, 1)
	assert.Equal(t, log.RunID, runs[0].RunID)
}

func TestRunUnknownWorkflowReturnsLoadError(t *testing.T) {
	s := testService(t, echoRegistry(t))

	_, err := s.Run(context.Background(), "ghost", nil)
	var loadErr *errors.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, errors.LoadMissing, loadErr.Kind)
}

func TestConcurrentRunsGetBusySentinel(t *testing.T) {
	reg := action.NewRegistry()
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	reg.Register("block", action.HandlerFunc(func(ctx context.Context, _, _ map[string]any) (map[string]any, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-ctx.Done():
		}
		return map[string]any{"text": "done"}, nil
	}), nil)

	s := testService(t, reg)
	writeWorkflow(t, s, "slow", `
name: slow
trigger:
  type: manual
steps:
  - id: s1
    type: block
`)

	done := make(chan *workflow.RunLog, 1)
	go func() {
		log, err := s.Run(context.Background(), "slow", nil)
		require.NoError(t, err)
		done <- log
	}()
	<-started

	_, err := s.Run(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, errors.ErrAlreadyRunning)

	close(release)
	log := <-done
	assert.Equal(t, workflow.StatusSuccess, log.Status)
	assert.False(t, s.Manager().IsRunning("slow"))
}

func TestLiveRunHandleCarriesRunID(t *testing.T) {
	reg := action.NewRegistry()
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	reg.Register("block", action.HandlerFunc(func(ctx context.Context, _, _ map[string]any) (map[string]any, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-ctx.Done():
		}
		return map[string]any{}, nil
	}), nil)

	s := testService(t, reg)
	writeWorkflow(t, s, "tracked", `
name: tracked
trigger:
  type: manual
steps:
  - id: s1
    type: block
`)

	done := make(chan *workflow.RunLog, 1)
	go func() {
		log, err := s.Run(context.Background(), "tracked", nil)
		require.NoError(t, err)
		done <- log
	}()
	<-started

	run, ok := s.Manager().Get("tracked")
	require.True(t, ok)
	assert.NotEmpty(t, run.RunID)

	close(release)
	log := <-done
	assert.Equal(t, run.RunID, log.RunID, "the registered handle and the log name the same run")
}

func TestStopCancelsLiveRun(t *testing.T) {
	reg := action.NewRegistry()
	started := make(chan struct{})
	var once sync.Once
	reg.Register("block", action.HandlerFunc(func(ctx context.Context, _, _ map[string]any) (map[string]any, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}), nil)

	s := testService(t, reg)
	writeWorkflow(t, s, "longrun", `
name: longrun
trigger:
  type: manual
steps:
  - id: s1
    type: block
`)

	done := make(chan *workflow.RunLog, 1)
	go func() {
		log, err := s.Run(context.Background(), "longrun", nil)
		require.NoError(t, err)
		done <- log
	}()
	<-started

	require.NoError(t, s.Stop("longrun"))
	log := <-done
	assert.Equal(t, workflow.StatusStopped, log.Status)
	require.Len(t, log.Steps, 1)
	assert.Equal(t, workflow.StepFailed, log.Steps[0].Status)
}

func TestStopWithoutRunReturnsNotRunning(t *testing.T) {
	s := testService(t, echoRegistry(t))
	err := s.Stop("idle")
	assert.ErrorIs(t, err, errors.ErrNotRunning)
}

func TestPromptOverrideAppliesToAIFirstStep(t *testing.T) {
	reg := action.NewRegistry()
	var seenPrompt string
	reg.Register("ai_generate", action.HandlerFunc(func(_ context.Context, params, _ map[string]any) (map[string]any, error) {
		seenPrompt, _ = params["prompt"].(string)
		return map[string]any{"text": "ok"}, nil
	}), nil)

	s := testService(t, reg)
	writeWorkflow(t, s, "ai", `
name: ai
trigger:
  type: manual
steps:
  - id: generate
    type: ai_generate
    params:
      prompt: original
`)

	_, err := s.Run(context.Background(), "ai", &RunOptions{Prompt: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", seenPrompt)

	// the loaded definition itself must stay untouched
	wf, loadErr := s.Loader().Load("ai")
	require.Nil(t, loadErr)
	assert.Equal(t, "original", wf.Steps[0].Params["prompt"])
}

func TestPromptOverrideIgnoredForOtherTypes(t *testing.T) {
	reg := action.NewRegistry()
	var seen map[string]any
	reg.Register("log", action.HandlerFunc(func(_ context.Context, params, _ map[string]any) (map[string]any, error) {
		seen = params
		return map[string]any{"text": "ok"}, nil
	}), nil)

	s := testService(t, reg)
	writeWorkflow(t, s, "plain", `
name: plain
trigger:
  type: manual
steps:
  - id: s1
    type: log
    params:
      message: hi
`)

	_, err := s.Run(context.Background(), "plain", &RunOptions{Prompt: "override"})
	require.NoError(t, err)
	assert.NotContains(t, seen, "prompt")
}

func TestRunNestedSkipsSlotCheck(t *testing.T) {
	s := testService(t, echoRegistry(t))
	writeWorkflow(t, s, "child", `
name: child
trigger:
  type: manual
steps:
  - id: s1
    type: log
    params:
      message: nested
`)

	// occupy the slot as if a parent run were live
	_, ok := s.Manager().Register("child", "parent", func() {})
	require.True(t, ok)
	defer s.Manager().Unregister("child")

	log, err := s.RunNested(context.Background(), "child", map[string]any{
		workflow.CallChainKey: []string{"parent"},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSuccess, log.Status)
}

func TestInputsSeedRunContext(t *testing.T) {
	reg := action.NewRegistry()
	reg.Register("echo_ctx", action.HandlerFunc(func(_ context.Context, params, _ map[string]any) (map[string]any, error) {
		return map[string]any{"text": params["value"]}, nil
	}), nil)

	s := testService(t, reg)
	writeWorkflow(t, s, "seeded", `
name: seeded
trigger:
  type: manual
steps:
  - id: s1
    type: echo_ctx
    params:
      value: "{{ customer }}"
`)

	log, err := s.Run(context.Background(), "seeded", &RunOptions{
		Inputs: map[string]any{"customer": "acme"},
	})
	require.NoError(t, err)
	require.Len(t, log.Steps, 1)
	assert.Equal(t, "acme", log.Steps[0].Result["text"])
}
