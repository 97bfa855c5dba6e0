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

package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/reprise/internal/journal"
	"github.com/tombee/reprise/internal/runner"
	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/workflow"
)

func testScheduler(t *testing.T) (*Scheduler, *runner.Service) {
	t.Helper()
	dir := t.TempDir()
	loader := workflow.NewLoader(filepath.Join(dir, "workflows"))
	j := journal.New(filepath.Join(dir, "runs"), time.UTC, nil)

	reg := action.NewRegistry()
	reg.Register("log", action.HandlerFunc(func(_ context.Context, params, _ map[string]any) (map[string]any, error) {
		msg, _ := params["message"].(string)
		return map[string]any{"text": msg}, nil
	}), nil)

	executor := workflow.NewExecutor(reg).WithLocation(time.UTC)
	service := runner.NewService(loader, executor, j, runner.NewManager(), nil)
	return New(service, j, time.UTC, 3, nil), service
}

func writeDefinition(t *testing.T, service *runner.Service, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(service.Loader().Dir(), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(service.Loader().Dir(), name+".yaml"), []byte(body), 0o644))
}

const scheduledDef = `
name: %NAME%
enabled: %ENABLED%
trigger:
  type: schedule
  cron: "%CRON%"
steps:
  - id: s1
    type: log
    params:
      message: tick
`

func definition(name, cron string, enabled bool) string {
	body := strings.ReplaceAll(scheduledDef, "%NAME%", name)
	body = strings.ReplaceAll(body, "%CRON%", cron)
	return strings.ReplaceAll(body, "%ENABLED%", strconv.FormatBool(enabled))
}

func TestRegisterAllPicksEnabledScheduledOnly(t *testing.T) {
	s, service := testScheduler(t)

	writeDefinition(t, service, "hourly", definition("hourly", "0 * * * *", true))
	writeDefinition(t, service, "disabled", definition("disabled", "0 * * * *", false))
	writeDefinition(t, service, "manual", `
name: manual
trigger:
  type: manual
steps:
  - id: s1
    type: log
`)
	writeDefinition(t, service, "badcron", definition("badcron", "not a cron", true))

	count := s.RegisterAll()
	assert.Equal(t, 1, count)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "hourly", jobs[0].Workflow)
	assert.Equal(t, "0 * * * *", jobs[0].Cron)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestRegisterReplacesByName(t *testing.T) {
	s, service := testScheduler(t)
	writeDefinition(t, service, "wf", definition("wf", "0 * * * *", true))

	wf, loadErr := service.Loader().Load("wf")
	require.Nil(t, loadErr)
	require.NoError(t, s.Register(wf))

	wf.Trigger.Cron = "30 * * * *"
	require.NoError(t, s.Register(wf))

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "30 * * * *", jobs[0].Cron)
}

func TestRegisterRejectsNonScheduled(t *testing.T) {
	s, _ := testScheduler(t)

	manual := &workflow.Workflow{
		Name:    "manual",
		Trigger: workflow.Trigger{Type: workflow.TriggerManual},
		Steps:   []workflow.Step{{ID: "s1", Type: "log"}},
	}
	assert.Error(t, s.Register(manual))

	disabled := false
	off := &workflow.Workflow{
		Name:    "off",
		Enabled: &disabled,
		Trigger: workflow.Trigger{Type: workflow.TriggerSchedule, Cron: "0 * * * *"},
		Steps:   []workflow.Step{{ID: "s1", Type: "log"}},
	}
	assert.Error(t, s.Register(off))
}

func TestReloadDropsStaleJobs(t *testing.T) {
	s, service := testScheduler(t)

	writeDefinition(t, service, "a", definition("a", "0 * * * *", true))
	writeDefinition(t, service, "b", definition("b", "0 * * * *", true))
	assert.Equal(t, 2, s.RegisterAll())

	require.NoError(t, os.Remove(filepath.Join(service.Loader().Dir(), "b.yaml")))
	assert.Equal(t, 1, s.Reload())

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].Workflow)
}

func TestPreview(t *testing.T) {
	s, _ := testScheduler(t)

	times, err := s.Preview("0 9 * * *", 3)
	require.NoError(t, err)
	require.Len(t, times, 3)
	for i, ts := range times {
		assert.Equal(t, 9, ts.Hour())
		assert.Equal(t, 0, ts.Minute())
		if i > 0 {
			assert.True(t, ts.After(times[i-1]))
		}
	}

	_, err = s.Preview("bogus", 3)
	assert.Error(t, err)
}

func TestStartStopIdempotent(t *testing.T) {
	s, _ := testScheduler(t)

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx) // second start is a no-op
	s.Stop()
	s.Stop() // second stop is a no-op

	// restart works after a stop
	s.Start(ctx)
	s.Stop()
}

func TestDueJobFires(t *testing.T) {
	s, service := testScheduler(t)
	writeDefinition(t, service, "everymin", definition("everymin", "* * * * *", true))
	require.Equal(t, 1, s.RegisterAll())

	// force the job due and tick manually instead of waiting a minute
	s.mu.Lock()
	s.jobs["everymin"].next = time.Now().Add(-time.Second)
	s.mu.Unlock()

	s.tick(context.Background(), time.Now().UTC())

	require.Eventually(t, func() bool {
		return len(service.Journal().RunsFor("everymin", 0, 0)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].RunCount)
	assert.NotNil(t, jobs[0].LastRun)
	assert.True(t, jobs[0].NextRun.After(time.Now().Add(-time.Minute)))
}
