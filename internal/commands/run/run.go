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

// Package run implements the reprise run command.
package run

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/cli/format"
	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/internal/runner"
	"github.com/tombee/reprise/pkg/workflow"
)

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	var (
		inputs  []string
		prompt  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a workflow now",
		Long: `Run a workflow in the foreground and print its run log.

The workflow executes locally in this process, exactly as the daemon
would run it: same actions, same journal, same backups directory.

Inputs are seeded into the run context and available to templates:
  reprise run daily_report --input city=Tokyo --input limit=5

The exit code is 0 for a successful run, 1 for a failed one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, args[0], inputs, prompt, timeout)
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Seed a context value as key=value (repeatable)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Override the first ai_generate step's prompt")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-step timeout override (e.g. 90s)")

	return cmd
}

func runWorkflow(cmd *cobra.Command, name string, inputs []string, prompt string, timeout time.Duration) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	seed, err := parseInputs(inputs)
	if err != nil {
		return err
	}

	log, err := env.Service.Run(cmd.Context(), name, &runner.RunOptions{
		Prompt:      prompt,
		Inputs:      seed,
		StepTimeout: timeout,
	})
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		if err := shared.EmitJSON(log); err != nil {
			return err
		}
	} else {
		printRunLog(cmd, log)
	}

	if log.Status != workflow.StatusSuccess {
		return shared.NewExecutionError(fmt.Sprintf("run %s finished with status %s", log.RunID, log.Status), nil)
	}
	return nil
}

// parseInputs converts repeated key=value flags into a seed context.
func parseInputs(inputs []string) (map[string]any, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	seed := make(map[string]any, len(inputs))
	for _, raw := range inputs {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --input %q: expected key=value", raw)
		}
		seed[key] = value
	}
	return seed, nil
}

func printRunLog(cmd *cobra.Command, log *workflow.RunLog) {
	cmd.Printf("%s  run %s  %s\n\n", log.Workflow, log.RunID, shared.RenderRunStatus(string(log.Status)))

	rows := make([][]string, 0, len(log.Steps))
	for _, step := range log.Steps {
		detail := ""
		if step.Error != "" {
			detail = step.Error
		}
		rows = append(rows, []string{step.ID, step.Type, shared.RenderRunStatus(string(step.Status)), detail})
	}
	cmd.Print(format.Table([]string{"STEP", "TYPE", "STATUS", "DETAIL"}, rows, format.IsTTY()))

	if log.Error != "" {
		cmd.Println()
		cmd.Println(shared.RenderError(log.Error))
	}
}
