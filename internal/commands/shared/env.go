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

package shared

import (
	"log/slog"
	"os"

	"github.com/tombee/reprise/internal/action/builtin"
	"github.com/tombee/reprise/internal/backup"
	"github.com/tombee/reprise/internal/config"
	"github.com/tombee/reprise/internal/journal"
	"github.com/tombee/reprise/internal/log"
	"github.com/tombee/reprise/internal/runner"
	"github.com/tombee/reprise/internal/secrets"
	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/workflow"
)

// Env is the locally assembled engine the CLI commands operate on.
// Commands that execute or inspect workflows work against the base
// directory directly; only stop and scheduler state go through the
// daemon API.
type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Loader   *workflow.Loader
	Journal  *journal.Journal
	Backups  *backup.Manager
	Secrets  *secrets.Resolver
	Registry *action.Registry
	Service  *runner.Service
}

// LoadEnv loads configuration (honoring --config) and assembles the
// engine over it. The secrets resolver and the full builtin action set
// are wired so local runs behave exactly like daemon runs.
func LoadEnv() (*Env, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	logger := NewLogger(cfg)
	loc := cfg.Location()

	resolver := secrets.NewDefaultResolver(cfg.SecretsDir, logger)
	reg := action.NewRegistry()

	executor := workflow.NewExecutor(reg).
		WithLogger(logger).
		WithLocation(loc).
		WithBaseDir(cfg.BaseDir).
		WithStepTimeout(cfg.StepTimeout)

	loader := workflow.NewLoader(cfg.WorkflowsDir)
	j := journal.New(cfg.RunsDir, loc, logger)
	service := runner.NewService(loader, executor, j, runner.NewManager(), logger)

	builtin.Register(reg, builtin.Deps{
		Logger:  logger,
		Secrets: resolver,
		AI:      cfg.AI,
		Runner:  service,
	})

	return &Env{
		Config:   cfg,
		Logger:   logger,
		Loader:   loader,
		Journal:  j,
		Backups:  backup.NewManager(cfg.BackupsDir, cfg.MaxBackups, loc),
		Secrets:  resolver,
		Registry: reg,
		Service:  service,
	}, nil
}

// NewLogger builds the CLI logger: text to stderr, level driven by the
// --verbose and --quiet flags with the config as baseline.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	switch {
	case GetQuiet():
		level = "error"
	case GetVerbose():
		level = "debug"
	}
	return log.New(&log.Config{
		Level:  level,
		Format: log.FormatText,
		Output: os.Stderr,
	})
}
