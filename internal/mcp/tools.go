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

package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/reprise/internal/runner"
	"github.com/tombee/reprise/pkg/errors"
	"github.com/tombee/reprise/pkg/workflow"
)

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries := s.loader.List()

	data, err := json.MarshalIndent(map[string]any{"workflows": summaries}, "", "  ")
	if err != nil {
		return errorResult("encoding workflow list: %v", err), nil
	}
	return textResult(string(data)), nil
}

// validationResult is the structured reply of workflow_validate.
type validationResult struct {
	Valid      bool   `json:"valid"`
	Name       string `json:"name,omitempty"`
	Steps      int    `json:"steps,omitempty"`
	Error      string `json:"error,omitempty"`
	Field      string `json:"field,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// validateDefinition parses and validates workflow YAML.
func validateDefinition(content []byte) validationResult {
	wf, err := workflow.Parse(content)
	if err == nil {
		err = wf.Validate()
	}
	if err == nil {
		return validationResult{Valid: true, Name: wf.Name, Steps: len(wf.Steps)}
	}

	result := validationResult{Valid: false, Error: err.Error()}
	var valErr *errors.ValidationError
	if stderrors.As(err, &valErr) {
		result.Field = valErr.Field
		result.Suggestion = valErr.Suggestion
	}
	return result
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := request.RequireString("workflow_yaml")
	if err != nil {
		return errorResult("missing or invalid 'workflow_yaml' argument"), nil
	}

	result := validateDefinition([]byte(content))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResult("encoding validation result: %v", err), nil
	}
	return textResult(string(data)), nil
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("workflow")
	if err != nil {
		return errorResult("missing or invalid 'workflow' argument"), nil
	}

	opts := &runner.RunOptions{
		Prompt: request.GetString("prompt", ""),
	}
	if args := request.GetArguments(); args != nil {
		if inputs, ok := args["inputs"].(map[string]interface{}); ok {
			opts.Inputs = inputs
		}
	}

	s.logger.Info("running workflow via mcp", "workflow", name)

	log, runErr := s.runner.Run(ctx, name, opts)
	if runErr != nil {
		var loadErr *errors.LoadError
		switch {
		case stderrors.Is(runErr, errors.ErrAlreadyRunning):
			return errorResult("workflow %s is already running; wait for the current run to finish", name), nil
		case stderrors.As(runErr, &loadErr):
			return errorResult("cannot load workflow %s: %v", name, loadErr), nil
		default:
			return errorResult("run failed to start: %v", runErr), nil
		}
	}

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return errorResult("encoding run log: %v", err), nil
	}
	return textResult(string(data)), nil
}
