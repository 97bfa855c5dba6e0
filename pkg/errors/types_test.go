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

package errors_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	repriseerrors "github.com/tombee/reprise/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *repriseerrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field path",
			err: &repriseerrors.ValidationError{
				Field:      "steps[2].when.equals",
				Message:    "required field is missing",
				Suggestion: "Set a comparand on the condition",
			},
			wantMsg: "validation failed on steps[2].when.equals: required field is missing",
		},
		{
			name: "without field",
			err: &repriseerrors.ValidationError{
				Message:    "workflow must have at least one step",
				Suggestion: "Add a step to the workflow",
			},
			wantMsg: "validation failed: workflow must have at least one step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestLoadError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *repriseerrors.LoadError
		wantMsg string
	}{
		{
			name: "explicit message wins",
			err: &repriseerrors.LoadError{
				Name:    "daily_report",
				Kind:    repriseerrors.LoadParse,
				Message: "yaml: line 4: mapping values are not allowed in this context",
			},
			wantMsg: "yaml: line 4: mapping values are not allowed in this context",
		},
		{
			name: "fallback names workflow and kind",
			err: &repriseerrors.LoadError{
				Name: "daily_report",
				Kind: repriseerrors.LoadMissing,
			},
			wantMsg: `workflow "daily_report": missing error`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("LoadError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *repriseerrors.NotFoundError
		wantMsg string
	}{
		{
			name: "workflow not found",
			err: &repriseerrors.NotFoundError{
				Resource: "workflow",
				ID:       "daily_report",
			},
			wantMsg: "workflow not found: daily_report",
		},
		{
			name: "action not found",
			err: &repriseerrors.NotFoundError{
				Resource: "action",
				ID:       "excel_read",
			},
			wantMsg: "action not found: excel_read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("NotFoundError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestActionError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &repriseerrors.ActionError{
		Step:  "notify",
		Type:  "http_request",
		Cause: cause,
	}

	want := "step notify (http_request): connection refused"
	if got := err.Error(); got != want {
		t.Errorf("ActionError.Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("ActionError should unwrap to its cause")
	}

	noStep := &repriseerrors.ActionError{Type: "log", Cause: cause}
	if got := noStep.Error(); got != "action log: connection refused" {
		t.Errorf("ActionError.Error() without step = %q", got)
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &repriseerrors.ConfigError{
		Key:    "timezone",
		Reason: "unknown location",
		Cause:  errors.New("unknown time zone Asia/Tokio"),
	}
	want := "config error at timezone: unknown location"
	if got := err.Error(); got != want {
		t.Errorf("ConfigError.Error() = %q, want %q", got, want)
	}
	if errors.Unwrap(err) == nil {
		t.Error("ConfigError should expose its cause")
	}
}

func TestTimeoutError_Error(t *testing.T) {
	err := &repriseerrors.TimeoutError{
		Operation: "step execution",
		Duration:  300 * time.Second,
	}
	want := "step execution timed out after 5m0s"
	if got := err.Error(); got != want {
		t.Errorf("TimeoutError.Error() = %q, want %q", got, want)
	}
}

func TestRecursionError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *repriseerrors.RecursionError
		wantMsg string
	}{
		{
			name: "cycle reproduces the path",
			err: &repriseerrors.RecursionError{
				Workflow: "child",
				Chain:    []string{"parent", "child"},
			},
			wantMsg: "Circular dependency detected: child is already in call chain: parent -> child",
		},
		{
			name: "depth exhausted",
			err: &repriseerrors.RecursionError{
				Workflow: "leaf",
				Chain:    []string{"a", "b", "c", "d", "e"},
				Depth:    5,
			},
			wantMsg: "Maximum subworkflow depth (5) exceeded. Call chain: a -> b -> c -> d -> e",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("RecursionError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func ExampleValidationError() {
	err := &repriseerrors.ValidationError{
		Field:   "trigger.cron",
		Message: "cron expression must have 5 fields",
	}
	fmt.Println(err)
	// Output: validation failed on trigger.cron: cron expression must have 5 fields
}
