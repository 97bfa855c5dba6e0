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

// Package logs implements the reprise logs command.
package logs

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/cli/format"
	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/pkg/workflow"
)

// NewCommand creates the logs command.
func NewCommand() *cobra.Command {
	var (
		workflowName string
		limit        int
		offset       int
		latest       bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show run history from the journal",
		Long: `Show journaled runs, newest first.

Filter with --workflow, page with --limit and --offset, or show only
the most recent run per workflow with --latest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, workflowName, limit, offset, latest)
		},
	}

	cmd.Flags().StringVarP(&workflowName, "workflow", "w", "", "Only runs of this workflow")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	cmd.Flags().BoolVar(&latest, "latest", false, "Show the latest run per workflow")

	return cmd
}

func runLogs(cmd *cobra.Command, workflowName string, limit, offset int, latest bool) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	if latest {
		return printLatest(cmd, env, workflowName)
	}

	runs := env.Journal.All(limit, offset, workflowName)
	total := env.Journal.CountAll(workflowName)

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]any{
			"runs":   runs,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}

	if len(runs) == 0 {
		cmd.Println("No runs recorded")
		return nil
	}

	cmd.Print(format.Table([]string{"STARTED", "WORKFLOW", "RUN", "STATUS", "STEPS", "ERROR"}, runRows(runs), format.IsTTY()))
	cmd.Printf("\n%d of %d runs\n", len(runs), total)
	return nil
}

func printLatest(cmd *cobra.Command, env *shared.Env, workflowName string) error {
	var names []string
	if workflowName != "" {
		names = []string{workflowName}
	} else {
		for _, s := range env.Loader.List() {
			names = append(names, s.Name)
		}
	}

	latest := env.Journal.LatestMap(names)

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]any{"latest": latest})
	}

	runs := make([]*workflow.RunLog, 0, len(latest))
	for _, name := range names {
		if log, ok := latest[name]; ok {
			runs = append(runs, log)
		}
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded")
		return nil
	}
	cmd.Print(format.Table([]string{"STARTED", "WORKFLOW", "RUN", "STATUS", "STEPS", "ERROR"}, runRows(runs), format.IsTTY()))
	return nil
}

func runRows(runs []*workflow.RunLog) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, log := range runs {
		rows = append(rows, []string{
			startedAt(log.StartedAt),
			log.Workflow,
			log.RunID,
			shared.RenderRunStatus(string(log.Status)),
			strconv.Itoa(len(log.Steps)),
			log.Error,
		})
	}
	return rows
}

// startedAt compacts the journal's ISO-8601 timestamp for table output.
func startedAt(iso string) string {
	if t, err := time.Parse(time.RFC3339, iso); err == nil {
		return t.Format(time.DateTime)
	}
	return iso
}
