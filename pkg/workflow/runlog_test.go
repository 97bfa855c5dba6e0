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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLog_Duration(t *testing.T) {
	log := &RunLog{
		StartedAt: "2026-03-15T09:00:00Z",
		EndedAt:   "2026-03-15T09:00:42Z",
	}
	assert.Equal(t, 42*time.Second, log.Duration())
}

func TestRunLog_DurationMalformed(t *testing.T) {
	log := &RunLog{StartedAt: "not-a-time", EndedAt: "also-not"}
	assert.Equal(t, time.Duration(0), log.Duration())

	assert.Equal(t, time.Duration(0), (&RunLog{}).Duration())
}

func TestRunLog_JSONShape(t *testing.T) {
	log := &RunLog{
		RunID:     "20260315_090000_ab12",
		Workflow:  "daily-report",
		Status:    StatusSuccess,
		StartedAt: "2026-03-15T09:00:00Z",
		EndedAt:   "2026-03-15T09:00:01Z",
		Steps: []StepRecord{
			{ID: "fetch", Type: "http_request", Status: StepSuccess, Result: map[string]any{"status": 200}},
		},
	}

	data, err := json.Marshal(log)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "20260315_090000_ab12", decoded["run_id"])
	assert.Equal(t, "daily-report", decoded["workflow"])
	assert.Equal(t, "success", decoded["status"])
	assert.Contains(t, decoded, "started_at")
	assert.Contains(t, decoded, "ended_at")
	// empty error is omitted from the wire form
	assert.NotContains(t, decoded, "error")
}

func TestNewErrorRun(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 0, 0, 123456000, time.UTC)

	log := NewErrorRun("daily-report", "workflow is busy", now)

	assert.Regexp(t, `^error_\d{4}$`, log.RunID)
	assert.Equal(t, "daily-report", log.Workflow)
	assert.Equal(t, StatusFailed, log.Status)
	assert.Equal(t, "workflow is busy", log.Error)
	assert.Equal(t, log.StartedAt, log.EndedAt)
	assert.Empty(t, log.Steps)
	assert.NotNil(t, log.Steps)
}
