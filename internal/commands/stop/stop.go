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

// Package stop implements the reprise stop command.
package stop

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/internal/config"
	"github.com/tombee/reprise/sdk"
)

// NewCommand creates the stop command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <workflow>",
		Short: "Cancel a workflow's live run",
		Long: `Ask the daemon to cancel the live run of a workflow.

Runs live inside the daemon process, so this command talks to the
daemon API on the configured listen address.`,
		Args: cobra.ExactArgs(1),
		RunE: runStop,
	}
}

func runStop(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return err
	}

	client := shared.NewClient(cfg)
	if err := client.Stop(cmd.Context(), name); err != nil {
		if apiErr, ok := err.(*sdk.APIError); ok && apiErr.IsNotFound() {
			return fmt.Errorf("workflow %s is not running", name)
		}
		return fmt.Errorf("stopping %s via %s: %w", name, cfg.Listen, err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]any{"workflow": name, "stopped": true})
	}
	cmd.Println(shared.RenderOK("stopped " + name))
	return nil
}
