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

// Package daemon implements the reprise daemon command.
package daemon

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/internal/config"
	"github.com/tombee/reprise/internal/daemon"
	"github.com/tombee/reprise/internal/daemon/api"
)

// NewCommand creates the daemon command.
func NewCommand() *cobra.Command {
	var (
		listen    string
		noWatcher bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler and HTTP API in the foreground",
		Long: `Run the reprise daemon: the cron scheduler, the workflow directory
watcher and the HTTP API, until interrupted.

The same process is available as the standalone reprised binary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(listen, noWatcher)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address override (default from config)")
	cmd.Flags().BoolVar(&noWatcher, "no-watcher", false, "Disable the workflow directory watcher")

	return cmd
}

func runDaemon(listen string, noWatcher bool) error {
	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}

	logger := shared.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v, c, b := shared.GetVersion()
	d, err := daemon.New(ctx, cfg, logger, daemon.Options{
		Version:        api.Version{Version: v, Commit: c, BuildDate: b},
		DisableWatcher: noWatcher,
	})
	if err != nil {
		return err
	}

	return d.Run(ctx)
}
