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

// Package utility provides small helper actions.
package utility

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/errors"
)

// SleepAction pauses the run. Cancellation and the step deadline cut
// the pause short.
type SleepAction struct{}

// Execute sleeps for the requested duration.
func (a *SleepAction) Execute(ctx context.Context, params, _ map[string]any) (map[string]any, error) {
	d, err := sleepDuration(params)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return map[string]any{"slept": d.Seconds()}, nil
}

// sleepDuration accepts either seconds (number) or duration (Go
// duration string such as "1m30s").
func sleepDuration(params map[string]any) (time.Duration, error) {
	if raw, ok := params["duration"]; ok {
		s, ok := raw.(string)
		if !ok {
			return 0, &errors.ValidationError{
				Field:      "duration",
				Message:    fmt.Sprintf("duration must be a string, got %T", raw),
				Suggestion: `Use a Go duration string such as "90s" or "1m30s"`,
			}
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, &errors.ValidationError{
				Field:      "duration",
				Message:    fmt.Sprintf("invalid duration %q", s),
				Suggestion: `Use a Go duration string such as "90s" or "1m30s"`,
			}
		}
		if d < 0 {
			return 0, &errors.ValidationError{Field: "duration", Message: "duration must not be negative"}
		}
		return d, nil
	}

	raw, ok := params["seconds"]
	if !ok {
		return 0, &errors.ValidationError{
			Field:      "seconds",
			Message:    "seconds or duration is required",
			Suggestion: "Provide seconds as a number or duration as a string",
		}
	}

	var seconds float64
	switch v := raw.(type) {
	case int:
		seconds = float64(v)
	case float64:
		seconds = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, &errors.ValidationError{
				Field:   "seconds",
				Message: fmt.Sprintf("cannot parse %q as a number", v),
			}
		}
		seconds = parsed
	default:
		return 0, &errors.ValidationError{
			Field:   "seconds",
			Message: fmt.Sprintf("seconds must be a number, got %T", raw),
		}
	}
	if seconds < 0 {
		return 0, &errors.ValidationError{Field: "seconds", Message: "seconds must not be negative"}
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// SleepMetadata describes sleep for the catalog.
func SleepMetadata() *action.Metadata {
	return &action.Metadata{
		Type:        "sleep",
		Title:       "Sleep",
		Category:    "utility",
		Description: "Pauses the run for a fixed interval.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"seconds":  {Type: "number", Description: "Seconds to sleep"},
				"duration": {Type: "string", Description: `Go duration string, e.g. "1m30s"; overrides seconds`},
			},
		},
		Output: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"slept": {Type: "number", Description: "Seconds actually requested"},
			},
		},
	}
}
