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

// Package backups implements the reprise backups command.
package backups

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/cli/format"
	"github.com/tombee/reprise/internal/commands/shared"
)

// NewCommand creates the backups command.
func NewCommand() *cobra.Command {
	var show string

	cmd := &cobra.Command{
		Use:   "backups <workflow>",
		Short: "List definition snapshots for a workflow",
		Long: `List the snapshots taken before each overwrite of a workflow
definition, newest first. Print one with --show <filename>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackups(cmd, args[0], show)
		},
	}

	cmd.Flags().StringVar(&show, "show", "", "Print the content of one snapshot")

	return cmd
}

func runBackups(cmd *cobra.Command, name, show string) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	if show != "" {
		content, err := env.Backups.Read(name, show)
		if err != nil {
			return err
		}
		cmd.Print(content)
		return nil
	}

	snapshots, err := env.Backups.List(name)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitJSON(map[string]any{"workflow": name, "backups": snapshots})
	}

	if len(snapshots) == 0 {
		cmd.Printf("No backups for %s\n", name)
		return nil
	}

	rows := make([][]string, 0, len(snapshots))
	for _, s := range snapshots {
		rows = append(rows, []string{
			s.Filename,
			s.Timestamp,
			strconv.FormatInt(s.Size, 10),
		})
	}
	cmd.Print(format.Table([]string{"FILE", "TAKEN", "BYTES"}, rows, format.IsTTY()))
	return nil
}
