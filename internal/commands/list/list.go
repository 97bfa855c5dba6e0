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

// Package list implements the reprise list command.
package list

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/cli/format"
	"github.com/tombee/reprise/internal/commands/shared"
)

// NewCommand creates the list command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Long: `List every workflow in the workflows directory with its trigger,
schedule and validity. Invalid definitions are listed with their parse
error rather than hidden.`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	summaries := env.Loader.List()

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]any{"workflows": summaries})
	}

	if len(summaries) == 0 {
		cmd.Printf("No workflows in %s\n", env.Loader.Dir())
		return nil
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		state := shared.StatusOK.Render("ok")
		switch {
		case !s.Valid:
			state = shared.StatusError.Render("invalid: " + s.Error)
		case !s.Enabled:
			state = shared.Muted.Render("disabled")
		}
		rows = append(rows, []string{s.Name, s.TriggerType, s.Cron, strconv.Itoa(s.StepCount), state})
	}
	cmd.Print(format.Table([]string{"NAME", "TRIGGER", "CRON", "STEPS", "STATE"}, rows, format.IsTTY()))
	return nil
}
