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

// Package cli builds the root reprise command.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/commands/shared"
)

// SetVersion records build-time version information (called from main).
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for reprise.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reprise",
		Short: "Reprise - scheduled workflow automation",
		Long: `Reprise runs declarative YAML workflows: ordered steps with
templated parameters, fired manually or on a cron schedule.

Run 'reprise init' to scaffold the data directory and a sample
workflow. Run 'reprise daemon' to start the scheduler and HTTP API.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We map errors to exit codes ourselves
	}

	verbose, quiet, json, config := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.reprise/config.yaml)")

	return cmd
}

// HandleExitError handles exit errors with proper exit codes.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
