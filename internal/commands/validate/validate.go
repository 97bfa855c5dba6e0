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

// Package validate implements the reprise validate command.
package validate

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/pkg/workflow"
)

// NewCommand creates the validate command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow|file.yaml>",
		Short: "Validate a workflow definition",
		Long: `Validate a workflow without running it.

The argument is either a workflow name resolved against the workflows
directory, or a path to a YAML file (anything containing a path
separator or ending in .yaml/.yml).

Exit code 2 signals an invalid definition.`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	target := args[0]

	wf, err := loadTarget(target)
	if err != nil {
		if shared.GetJSON() {
			_ = shared.EmitJSON(map[string]any{"valid": false, "error": err.Error()})
		}
		return shared.NewInvalidWorkflowError("validation failed", err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]any{
			"valid":    true,
			"name":     wf.Name,
			"trigger":  wf.Trigger.Type,
			"steps":    len(wf.Steps),
			"enabled":  wf.IsEnabled(),
		})
	}

	cmd.Println(shared.RenderOK(wf.Name + " is valid"))
	cmd.Printf("  trigger: %s\n", wf.Trigger.Type)
	if wf.Trigger.Cron != "" {
		cmd.Printf("  cron:    %s\n", wf.Trigger.Cron)
	}
	cmd.Printf("  steps:   %d\n", len(wf.Steps))
	return nil
}

// loadTarget resolves the argument as a file path or a workflow name.
func loadTarget(target string) (*workflow.Workflow, error) {
	if isPath(target) {
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, err
		}
		wf, err := workflow.Parse(data)
		if err != nil {
			return nil, err
		}
		if err := wf.Validate(); err != nil {
			return nil, err
		}
		return wf, nil
	}

	env, err := shared.LoadEnv()
	if err != nil {
		return nil, err
	}
	wf, loadErr := env.Loader.Load(target)
	if loadErr != nil {
		return nil, loadErr
	}
	return wf, nil
}

func isPath(target string) bool {
	return strings.ContainsRune(target, os.PathSeparator) ||
		strings.HasSuffix(target, ".yaml") || strings.HasSuffix(target, ".yml")
}
