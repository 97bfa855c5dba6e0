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

// Package cleanup implements the reprise cleanup command.
package cleanup

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/commands/shared"
)

// NewCommand creates the cleanup command.
func NewCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete run journals past the retention window",
		Long: `Delete daily journal files strictly older than the retention
window. Files for today and the retention window stay; filenames that
are not day buckets are never touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd, days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention in days (default: configured retention_days)")

	return cmd
}

func runCleanup(cmd *cobra.Command, days int) error {
	env, err := shared.LoadEnv()
	if err != nil {
		return err
	}

	if days == 0 {
		days = env.Config.RetentionDays
	}
	if days < 1 {
		return fmt.Errorf("retention must be at least 1 day, got %d", days)
	}

	result, err := env.Journal.Cleanup(days)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitJSON(result)
	}

	cmd.Println(shared.RenderOK(fmt.Sprintf("deleted %d journal files (%d bytes), kept %d",
		result.DeletedCount, result.DeletedBytes, result.KeptCount)))
	return nil
}
