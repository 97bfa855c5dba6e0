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

// Package schedule implements the reprise schedule command group.
package schedule

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/cli/format"
	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/internal/config"
	"github.com/tombee/reprise/internal/scheduler"
)

// NewCommand creates the schedule command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and control the scheduler",
		Long: `Inspect and control the daemon's cron scheduler.

  list     registered jobs with their next firing time (daemon)
  preview  upcoming firings of a cron expression (local)
  reload   re-walk the workflow directory (daemon)`,
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newPreviewCommand())
	cmd.AddCommand(newReloadCommand())

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the daemon's scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(shared.GetConfigPath())
			if err != nil {
				return err
			}

			jobs, err := shared.NewClient(cfg).Jobs(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing jobs via %s: %w", cfg.Listen, err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(map[string]any{"jobs": jobs})
			}

			if len(jobs) == 0 {
				cmd.Println("No scheduled workflows")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				last := ""
				if job.LastRun != nil {
					last = job.LastRun.Format(time.DateTime)
				}
				rows = append(rows, []string{
					job.Workflow,
					job.Cron,
					job.NextRun.Format(time.DateTime),
					last,
					strconv.FormatInt(job.RunCount, 10),
				})
			}
			cmd.Print(format.Table([]string{"WORKFLOW", "CRON", "NEXT", "LAST", "RUNS"}, rows, format.IsTTY()))
			return nil
		},
	}
}

func newPreviewCommand() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "preview <cron>",
		Short: "Show the next firing times of a cron expression",
		Long: `Show when a cron expression would fire next, evaluated locally in
the configured timezone. Quote the expression:

  reprise schedule preview "0 9 * * 1-5" --count 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(shared.GetConfigPath())
			if err != nil {
				return err
			}

			expr, err := scheduler.ParseCron(args[0])
			if err != nil {
				return shared.NewInvalidWorkflowError("invalid cron expression", err)
			}
			if count < 1 {
				count = 1
			}
			times := expr.NextN(time.Now().In(cfg.Location()), count)

			if shared.GetJSON() {
				return shared.EmitJSON(map[string]any{"cron": args[0], "next": times})
			}
			for _, t := range times {
				cmd.Println(t.Format("2006-01-02 15:04:05 MST"))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of firings to show")

	return cmd
}

func newReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Re-walk the workflow directory on the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(shared.GetConfigPath())
			if err != nil {
				return err
			}

			count, err := shared.NewClient(cfg).Reload(cmd.Context())
			if err != nil {
				return fmt.Errorf("reloading via %s: %w", cfg.Listen, err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(map[string]any{"scheduled": count})
			}
			cmd.Println(shared.RenderOK(fmt.Sprintf("%d workflows scheduled", count)))
			return nil
		},
	}
}
