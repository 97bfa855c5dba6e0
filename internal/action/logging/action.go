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

// Package logging provides the log builtin action.
package logging

import (
	"context"
	"log/slog"

	"github.com/tombee/reprise/pkg/action"
)

// Action writes a message to the engine log. The simplest action, and
// the usual first step while developing a workflow.
type Action struct {
	logger *slog.Logger
}

// New creates the log action.
func New(logger *slog.Logger) *Action {
	if logger == nil {
		logger = slog.Default()
	}
	return &Action{logger: logger.With("component", "action.log")}
}

// Execute logs the message at the requested level and echoes it back so
// later steps can reference it.
func (a *Action) Execute(_ context.Context, params, runContext map[string]any) (map[string]any, error) {
	message, _ := params["message"].(string)
	level, _ := params["level"].(string)

	workflowName, _ := runContext["workflow"].(string)
	logLine := a.logger.With("workflow", workflowName)

	switch level {
	case "debug":
		logLine.Debug(message)
	case "warning", "warn":
		logLine.Warn(message)
	case "error":
		logLine.Error(message)
	default:
		logLine.Info(message)
	}

	return map[string]any{
		"logged":  true,
		"message": message,
		"text":    message,
	}, nil
}

// Metadata describes the action for the catalog.
func Metadata() *action.Metadata {
	return &action.Metadata{
		Type:        "log",
		Title:       "Log message",
		Category:    "logging",
		Description: "Writes a message to the engine log. Templates may reference prior step results.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"message": {Type: "string", Description: "The message to log"},
				"level":   {Type: "string", Description: "Log level", Enum: []any{"debug", "info", "warning", "error"}, Default: "info"},
			},
			Required: []string{"message"},
		},
		Output: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"logged":  {Type: "boolean", Description: "Always true on success"},
				"message": {Type: "string", Description: "The logged message"},
				"text":    {Type: "string", Description: "Alias of message for downstream templates"},
			},
		},
	}
}
