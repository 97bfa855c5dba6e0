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

package main

import (
	"github.com/tombee/reprise/internal/cli"
	"github.com/tombee/reprise/internal/commands/actions"
	"github.com/tombee/reprise/internal/commands/backups"
	"github.com/tombee/reprise/internal/commands/cleanup"
	daemoncmd "github.com/tombee/reprise/internal/commands/daemon"
	"github.com/tombee/reprise/internal/commands/initcmd"
	"github.com/tombee/reprise/internal/commands/list"
	"github.com/tombee/reprise/internal/commands/logs"
	"github.com/tombee/reprise/internal/commands/mcpserver"
	"github.com/tombee/reprise/internal/commands/run"
	"github.com/tombee/reprise/internal/commands/schedule"
	"github.com/tombee/reprise/internal/commands/secrets"
	"github.com/tombee/reprise/internal/commands/stop"
	"github.com/tombee/reprise/internal/commands/validate"
	versioncmd "github.com/tombee/reprise/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Core workflow commands
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(list.NewCommand())
	rootCmd.AddCommand(validate.NewCommand())
	rootCmd.AddCommand(stop.NewCommand())

	// Journal and housekeeping
	rootCmd.AddCommand(logs.NewCommand())
	rootCmd.AddCommand(cleanup.NewCommand())
	rootCmd.AddCommand(backups.NewCommand())

	// Scheduler
	rootCmd.AddCommand(schedule.NewCommand())

	// Configuration and secrets
	rootCmd.AddCommand(initcmd.NewCommand())
	rootCmd.AddCommand(secrets.NewCommand())
	rootCmd.AddCommand(actions.NewCommand())

	// Long-running servers
	rootCmd.AddCommand(daemoncmd.NewCommand())
	rootCmd.AddCommand(mcpserver.NewCommand())

	rootCmd.AddCommand(versioncmd.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
