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

// Package subflow provides the subworkflow builtin action.
package subflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/errors"
	"github.com/tombee/reprise/pkg/workflow"
)

// DefaultMaxDepth bounds the subworkflow call chain when a step does
// not set max_depth.
const DefaultMaxDepth = 5

// NestedRunner executes a workflow on behalf of a parent run. The run
// service implements it; the indirection keeps this package free of a
// runner dependency.
type NestedRunner interface {
	RunNested(ctx context.Context, name string, seed map[string]any) (*workflow.RunLog, error)
}

// Action implements the subworkflow step type. A nested run inherits
// the parent's built-in context plus the rendered parameters, with the
// call chain extended for cycle and depth checks.
type Action struct {
	runner NestedRunner
	logger *slog.Logger
}

// New creates the subworkflow action.
func New(runner NestedRunner, logger *slog.Logger) *Action {
	if logger == nil {
		logger = slog.Default()
	}
	return &Action{
		runner: runner,
		logger: logger.With("component", "action.subworkflow"),
	}
}

// Execute runs the named workflow as a child of the current run.
//
// On child failure the step fails unless continue_on_error is set, in
// which case the failed result map is returned and the parent decides
// what to do with it.
func (a *Action) Execute(ctx context.Context, params, runContext map[string]any) (map[string]any, error) {
	name, _ := params[workflow.ParamWorkflowName].(string)
	if name == "" {
		return nil, &errors.ValidationError{
			Field:      workflow.ParamWorkflowName,
			Message:    "workflow_name is required",
			Suggestion: "Name the workflow to invoke, without the file extension",
		}
	}

	chain := workflow.ChainFrom(runContext)
	if parent, ok := runContext["workflow"].(string); ok && parent != "" && len(chain) == 0 {
		chain = []string{parent}
	}

	for _, ancestor := range chain {
		if ancestor == name {
			rerr := &errors.RecursionError{Workflow: name, Chain: chain}
			if continueOnError(params) {
				return failedResult(rerr.Error()), nil
			}
			return nil, rerr
		}
	}

	maxDepth := maxDepthFrom(params)
	if len(chain) >= maxDepth {
		rerr := &errors.RecursionError{
			Workflow: name,
			Chain:    append(append([]string{}, chain...), name),
			Depth:    maxDepth,
		}
		if continueOnError(params) {
			return failedResult(rerr.Error()), nil
		}
		return nil, rerr
	}

	seed := buildSeed(runContext, params, append(chain, name))

	a.logger.Info("invoking subworkflow",
		"workflow", name, "depth", len(chain)+1)

	log, err := a.runner.RunNested(ctx, name, seed)
	if err != nil {
		if continueOnError(params) {
			return failedResult(fmt.Sprintf("subworkflow %s: %v", name, err)), nil
		}
		return nil, fmt.Errorf("subworkflow %s: %w", name, err)
	}

	result := resultFrom(log)
	if log.Status != workflow.StatusSuccess && !continueOnError(params) {
		msg := log.Error
		if msg == "" {
			msg = fmt.Sprintf("subworkflow %s finished with status %s", name, log.Status)
		}
		return nil, fmt.Errorf("subworkflow %s failed: %s", name, msg)
	}
	return result, nil
}

// buildSeed assembles the nested run's starting context: the parent's
// inheritable built-ins, the extended call chain, then the step's
// parameters minus the control ones. Parent step results and other
// arbitrary context entries never cross into the child.
func buildSeed(runContext, params map[string]any, chain []string) map[string]any {
	seed := make(map[string]any, len(workflow.InheritableKeys)+len(params)+1)
	for _, key := range workflow.InheritableKeys {
		if value, ok := runContext[key]; ok {
			seed[key] = value
		}
	}

	seed[workflow.CallChainKey] = chain

	for key, value := range params {
		if workflow.IsControlParam(key) {
			continue
		}
		seed[key] = value
	}
	return seed
}

// failedResult is the step result of a rejected or unstartable nested
// run under continue_on_error.
func failedResult(msg string) map[string]any {
	return map[string]any{
		"success": false,
		"status":  string(workflow.StatusFailed),
		"error":   msg,
	}
}

// resultFrom flattens a child run log into the step result. Skipped
// steps are omitted from results.
func resultFrom(log *workflow.RunLog) map[string]any {
	results := make(map[string]any)
	for _, step := range log.Steps {
		if step.Status == workflow.StepSkipped {
			continue
		}
		results[step.ID] = step.Result
	}

	result := map[string]any{
		"success": log.Status == workflow.StatusSuccess,
		"status":  string(log.Status),
		"run_id":  log.RunID,
		"results": results,
	}
	if log.Error != "" {
		result["error"] = log.Error
	}
	return result
}

func maxDepthFrom(params map[string]any) int {
	switch v := params[workflow.ParamMaxDepth].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return DefaultMaxDepth
}

func continueOnError(params map[string]any) bool {
	b, _ := params[workflow.ParamContinueOnError].(bool)
	return b
}

// Metadata describes subworkflow for the catalog.
func Metadata() *action.Metadata {
	return &action.Metadata{
		Type:        "subworkflow",
		Title:       "Subworkflow",
		Category:    "composition",
		Description: "Runs another workflow as a step. Cycles and excessive nesting are rejected.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"workflow_name":     {Type: "string", Description: "Workflow to invoke"},
				"max_depth":         {Type: "number", Description: "Nesting limit", Default: DefaultMaxDepth},
				"continue_on_error": {Type: "boolean", Description: "Return the failed result instead of failing the step", Default: false},
			},
			Required: []string{"workflow_name"},
		},
		Output: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"success": {Type: "boolean", Description: "True when the child run succeeded"},
				"status":  {Type: "string", Description: "Child run status"},
				"run_id":  {Type: "string", Description: "Child run identifier"},
				"results": {Type: "object", Description: "Per-step results of the child, skipped steps omitted"},
				"error":   {Type: "string", Description: "Child run error when it failed"},
			},
		},
	}
}
