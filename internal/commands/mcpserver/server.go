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

// Package mcpserver implements the reprise mcp command.
package mcpserver

import (
	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/internal/mcp"
)

// NewCommand creates the mcp command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve workflows as MCP tools over stdio",
		Long: `Serve the workflow engine as an MCP (Model Context Protocol)
server over stdio, for AI assistants.

Exposed tools:
  workflow_list      list workflows with validity and schedules
  workflow_validate  validate workflow YAML without running it
  workflow_run       run a workflow and return its run log

Configuration example (~/.config/claude/config.json):
  {
    "mcpServers": {
      "reprise": {"command": "reprise", "args": ["mcp"]}
    }
  }`,
		Args: cobra.NoArgs,
		RunE: runServer,
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	versionStr, _, _ := shared.GetVersion()
	srv, err := mcp.NewServer(mcp.Config{
		Version: versionStr,
		Loader:  env.Loader,
		Runner:  env.Service,
		Logger:  env.Logger,
	})
	if err != nil {
		return err
	}

	return srv.Run(cmd.Context())
}
