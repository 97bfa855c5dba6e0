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

// Package transform provides the jq builtin action.
package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/errors"
)

const (
	// DefaultTimeout bounds one jq evaluation. A runaway query must not
	// eat the whole step deadline.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxInputSize caps the serialized input (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// JQAction evaluates a jq query over a prior step's output.
type JQAction struct {
	timeout      time.Duration
	maxInputSize int64
}

// NewJQ creates the jq action with default limits.
func NewJQ() *JQAction {
	return &JQAction{
		timeout:      DefaultTimeout,
		maxInputSize: DefaultMaxInputSize,
	}
}

// Execute runs the query against the input parameter, or against the
// whole run context when input is omitted.
func (a *JQAction) Execute(ctx context.Context, params, runContext map[string]any) (map[string]any, error) {
	queryStr, _ := params["query"].(string)
	if queryStr == "" {
		return nil, &errors.ValidationError{
			Field:      "query",
			Message:    "query is required",
			Suggestion: `Provide a jq expression, e.g. ".items | length"`,
		}
	}

	input, hasInput := params["input"]
	if !hasInput {
		input = runContext
	}

	// round-trip through JSON so gojq sees only the types it accepts
	normalized, err := normalize(input, a.maxInputSize)
	if err != nil {
		return nil, err
	}

	query, err := gojq.Parse(queryStr)
	if err != nil {
		return nil, fmt.Errorf("jq parse error: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compile error: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	iter := code.RunWithContext(execCtx, normalized)
	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq evaluation error: %w", err)
		}
		results = append(results, v)
	}

	var result any
	switch len(results) {
	case 0:
		result = nil
	case 1:
		result = results[0]
	default:
		result = results
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"result": result,
		"text":   string(text),
	}, nil
}

// Validate compiles a jq expression, catching syntax errors during
// workflow validation.
func Validate(expression string) error {
	if expression == "" {
		return nil
	}
	query, err := gojq.Parse(expression)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}
	if _, err := gojq.Compile(query); err != nil {
		return fmt.Errorf("jq compilation failed: %w", err)
	}
	return nil
}

func normalize(input any, maxSize int64) (any, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("input is not JSON-serializable: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("input size (%d bytes) exceeds maximum (%d bytes)", len(data), maxSize)
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// JQMetadata describes jq for the catalog.
func JQMetadata() *action.Metadata {
	return &action.Metadata{
		Type:        "jq",
		Title:       "jq transform",
		Category:    "transform",
		Description: "Evaluates a jq query over a prior step's output, or the whole run context when input is omitted.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"query": {Type: "string", Description: "The jq expression"},
				"input": {Type: "object", Description: "Data to query; usually a template reference to a prior step"},
			},
			Required: []string{"query"},
		},
		Output: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"result": {Type: "object", Description: "Query result; an array when the query yields multiple values"},
				"text":   {Type: "string", Description: "Result serialized as JSON"},
			},
		},
	}
}
