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

// Package mcp exposes the workflow engine to AI assistants as MCP
// tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/reprise/internal/runner"
	"github.com/tombee/reprise/pkg/workflow"
)

// Server wraps the MCP server and the engine it drives. Logs go to
// stderr; stdout carries the protocol.
type Server struct {
	mcpServer *server.MCPServer
	loader    *workflow.Loader
	runner    *runner.Service
	logger    *slog.Logger
}

// Config assembles a Server.
type Config struct {
	// Name is the advertised server name (default "reprise").
	Name string

	// Version is the reprise version string.
	Version string

	// Loader reads workflow definitions.
	Loader *workflow.Loader

	// Runner executes workflows with the at-most-one-run guarantee.
	Runner *runner.Service

	// Logger receives structured logs on stderr.
	Logger *slog.Logger
}

// NewServer creates an MCP server exposing the workflow tools.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Loader == nil || cfg.Runner == nil {
		return nil, fmt.Errorf("mcp server needs a loader and a runner")
	}
	if cfg.Name == "" {
		cfg.Name = "reprise"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		mcpServer: server.NewMCPServer(cfg.Name, cfg.Version),
		loader:    cfg.Loader,
		runner:    cfg.Runner,
		logger:    cfg.Logger.With("component", "mcp"),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "workflow_list",
		Description: "List the workflows in the workflows directory with trigger type, schedule, step count and validity.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleList)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "workflow_validate",
		Description: "Validate workflow YAML content without executing it. Returns field-level errors with suggestions.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workflow_yaml": map[string]interface{}{
					"type":        "string",
					"description": "The complete YAML content of the workflow to validate",
				},
			},
			Required: []string{"workflow_yaml"},
		},
	}, s.handleValidate)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "workflow_run",
		Description: "Run a workflow by name and wait for its run log. A workflow already running returns an error without starting a second run.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workflow": map[string]interface{}{
					"type":        "string",
					"description": "Workflow name as listed by workflow_list",
				},
				"inputs": map[string]interface{}{
					"type":        "object",
					"description": "Values seeded into the run context for templates",
				},
				"prompt": map[string]interface{}{
					"type":        "string",
					"description": "Override for the first ai_generate step's prompt",
				},
			},
			Required: []string{"workflow"},
		},
	}, s.handleRun)
}

// Run serves the tools over stdio until the transport closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "dir", s.loader.Dir())
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// errorResult wraps a message as a tool error without failing the call.
func errorResult(format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}
