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
	"fmt"
	"time"
)

// RunStatus is the lifecycle status of a run.
type RunStatus string

const (
	// StatusRunning marks a run that has not yet terminated.
	StatusRunning RunStatus = "running"

	// StatusSuccess marks a run where every non-skipped step succeeded.
	StatusSuccess RunStatus = "success"

	// StatusFailed marks a run terminated by a step failure, a timeout
	// or an unexpected error.
	StatusFailed RunStatus = "failed"

	// StatusStopped marks a run cancelled through the run manager.
	StatusStopped RunStatus = "stopped"
)

// StepStatus is the outcome of a single step.
type StepStatus string

const (
	// StepSuccess means the action returned a result.
	StepSuccess StepStatus = "success"

	// StepFailed means the action errored, timed out or was cancelled.
	StepFailed StepStatus = "failed"

	// StepSkipped means the step's condition did not hold.
	StepSkipped StepStatus = "skipped"
)

// RunLog records one execution of a workflow. Exactly one RunLog is
// appended to the journal per terminated run, whatever the outcome.
//
// Timestamps are ISO-8601 strings carrying the configured timezone's
// offset, so journal lines sort chronologically as plain strings.
type RunLog struct {
	RunID     string       `json:"run_id"`
	Workflow  string       `json:"workflow"`
	Status    RunStatus    `json:"status"`
	StartedAt string       `json:"started_at"`
	EndedAt   string       `json:"ended_at,omitempty"`
	Steps     []StepRecord `json:"steps"`
	Error     string       `json:"error,omitempty"`
}

// StepRecord is the persisted outcome of one step.
type StepRecord struct {
	// ID and Type are copied from the step definition
	ID   string `json:"id"`
	Type string `json:"type"`

	// Status is success, failed or skipped
	Status StepStatus `json:"status"`

	// Result holds the action's return value on success, or
	// {reason, when} when the step was skipped
	Result map[string]any `json:"result,omitempty"`

	// Error is set iff Status is failed
	Error string `json:"error,omitempty"`
}

// Duration returns the wall-clock span of the run, or zero when either
// timestamp is missing or malformed.
func (r *RunLog) Duration() time.Duration {
	started, err := time.Parse(time.RFC3339, r.StartedAt)
	if err != nil {
		return 0
	}
	ended, err := time.Parse(time.RFC3339, r.EndedAt)
	if err != nil {
		return 0
	}
	return ended.Sub(started)
}

// NewErrorRun builds a synthetic failed RunLog for failures that happen
// before a real run starts, such as a load error or a busy rejection.
// The dashboard renders it like any other run.
func NewErrorRun(workflowName, message string, now time.Time) *RunLog {
	stamp := now.Format(time.RFC3339)
	return &RunLog{
		RunID:     fmt.Sprintf("error_%04d", now.Nanosecond()/1000%10000),
		Workflow:  workflowName,
		Status:    StatusFailed,
		StartedAt: stamp,
		EndedAt:   stamp,
		Steps:     []StepRecord{},
		Error:     message,
	}
}
