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

// Package initcmd implements the reprise init command.
package initcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/reprise/internal/cli/prompt"
	"github.com/tombee/reprise/internal/commands/shared"
	"github.com/tombee/reprise/internal/config"
)

// sampleWorkflow is written into the workflows directory on request so
// a fresh install has something to run.
const sampleWorkflow = `name: hello
description: Sample workflow created by reprise init
trigger:
  type: manual
steps:
  - id: greet
    type: log
    params:
      message: "Hello from reprise! Today is {{ today }}."
  - id: note
    type: file_write
    params:
      path: "runs/hello_{{ today_ymd }}.txt"
      content: "run {{ run_id }} said: {{ greet.message }}\n"
`

// NewCommand creates the init command.
func NewCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold the data directory and a config file",
		Long: `Interactively scaffold the reprise data directory: workflows, runs,
backups and secrets directories, a config.yaml, and optionally a
sample workflow. With --yes, all defaults are accepted without
prompting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept all defaults without prompting")

	return cmd
}

type initAnswers struct {
	BaseDir    string
	Timezone   string
	Listen     string
	WithSample bool
}

func runInit(cmd *cobra.Command, yes bool) error {
	defaults := config.Default()
	answers := initAnswers{
		BaseDir:    defaults.BaseDir,
		Timezone:   defaults.Timezone,
		Listen:     defaults.Listen,
		WithSample: true,
	}

	if !yes && prompt.Interactive() {
		if err := askForm(&answers); err != nil {
			return err
		}
	}

	cfg := config.Default()
	cfg.BaseDir = answers.BaseDir
	cfg.Timezone = answers.Timezone
	cfg.Listen = answers.Listen
	// Re-derive the data directories under the chosen base.
	cfg.WorkflowsDir = filepath.Join(cfg.BaseDir, "workflows")
	cfg.TemplatesDir = filepath.Join(cfg.WorkflowsDir, "templates")
	cfg.RunsDir = filepath.Join(cfg.BaseDir, "runs")
	cfg.BackupsDir = filepath.Join(cfg.BaseDir, "backups")
	cfg.SecretsDir = filepath.Join(cfg.BaseDir, "secrets")

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	configPath := filepath.Join(cfg.BaseDir, "config.yaml")
	if err := writeConfig(configPath, cfg); err != nil {
		return err
	}
	cmd.Println(shared.RenderOK("wrote " + configPath))

	if answers.WithSample {
		samplePath := filepath.Join(cfg.WorkflowsDir, "hello.yaml")
		if _, err := os.Stat(samplePath); os.IsNotExist(err) {
			if err := os.WriteFile(samplePath, []byte(sampleWorkflow), 0o644); err != nil {
				return err
			}
			cmd.Println(shared.RenderOK("wrote " + samplePath))
		} else {
			cmd.Println(shared.RenderWarn("sample workflow already exists, left untouched"))
		}
	}

	cmd.Println()
	cmd.Println("Next steps:")
	cmd.Println("  reprise list")
	cmd.Println("  reprise run hello")
	cmd.Println("  reprise daemon")
	return nil
}

func askForm(answers *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Data directory").
				Description("Workflows, runs, backups and secrets live here").
				Value(&answers.BaseDir),
			huh.NewInput().
				Title("Timezone").
				Description("IANA name used for schedules, run IDs and journal dates").
				Value(&answers.Timezone),
			huh.NewInput().
				Title("Daemon listen address").
				Value(&answers.Listen),
			huh.NewConfirm().
				Title("Create a sample workflow?").
				Value(&answers.WithSample),
		),
	)

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			os.Exit(130) // Standard exit code for SIGINT
		}
		return fmt.Errorf("form cancelled: %w", err)
	}
	return nil
}

// writeConfig marshals only the fields worth persisting; derived
// directories stay implicit so moving the base dir stays easy.
func writeConfig(path string, cfg *config.Config) error {
	persisted := map[string]any{
		"base_dir":       cfg.BaseDir,
		"timezone":       cfg.Timezone,
		"listen":         cfg.Listen,
		"retention_days": cfg.RetentionDays,
		"max_backups":    cfg.MaxBackups,
	}
	data, err := yaml.Marshal(persisted)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
