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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Timezone != "Asia/Tokyo" {
		t.Errorf("expected timezone Asia/Tokyo, got %q", cfg.Timezone)
	}
	if cfg.StepTimeout != 5*time.Minute {
		t.Errorf("expected step timeout 5m, got %v", cfg.StepTimeout)
	}
	if cfg.RetentionDays != 3 {
		t.Errorf("expected retention 3 days, got %d", cfg.RetentionDays)
	}
	if cfg.MaxBackups != 10 {
		t.Errorf("expected 10 backups, got %d", cfg.MaxBackups)
	}
	if cfg.Listen != "127.0.0.1:8066" {
		t.Errorf("expected listen 127.0.0.1:8066, got %q", cfg.Listen)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected log level info, got %q", cfg.Log.Level)
	}
	if cfg.AI.DefaultProvider != "openai" {
		t.Errorf("expected default provider openai, got %q", cfg.AI.DefaultProvider)
	}

	if cfg.WorkflowsDir != filepath.Join(cfg.BaseDir, "workflows") {
		t.Errorf("expected workflows dir under base dir, got %q", cfg.WorkflowsDir)
	}
	if cfg.TemplatesDir != filepath.Join(cfg.WorkflowsDir, "templates") {
		t.Errorf("expected templates dir under workflows dir, got %q", cfg.TemplatesDir)
	}
	if cfg.RunsDir != filepath.Join(cfg.BaseDir, "runs") {
		t.Errorf("expected runs dir under base dir, got %q", cfg.RunsDir)
	}
	if cfg.BackupsDir != filepath.Join(cfg.BaseDir, "backups") {
		t.Errorf("expected backups dir under base dir, got %q", cfg.BackupsDir)
	}
	if cfg.SecretsDir != filepath.Join(cfg.BaseDir, "secrets") {
		t.Errorf("expected secrets dir under base dir, got %q", cfg.SecretsDir)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
base_dir: ` + dir + `
timezone: UTC
step_timeout: 30s
retention_days: 7
max_backups: 5
listen: "127.0.0.1:9000"
log:
  level: debug
  format: text
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.BaseDir != dir {
		t.Errorf("expected base dir %q, got %q", dir, cfg.BaseDir)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("expected timezone UTC, got %q", cfg.Timezone)
	}
	if cfg.StepTimeout != 30*time.Second {
		t.Errorf("expected step timeout 30s, got %v", cfg.StepTimeout)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("expected retention 7 days, got %d", cfg.RetentionDays)
	}
	if cfg.MaxBackups != 5 {
		t.Errorf("expected 5 backups, got %d", cfg.MaxBackups)
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("expected listen on 9000, got %q", cfg.Listen)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("expected log overrides, got %+v", cfg.Log)
	}

	// Dirs derive from the file-provided base dir.
	if cfg.WorkflowsDir != filepath.Join(dir, "workflows") {
		t.Errorf("expected derived workflows dir, got %q", cfg.WorkflowsDir)
	}
}

func TestLoad_MinimalFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("base_dir: "+dir+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Unset fields keep their defaults.
	if cfg.Timezone != "Asia/Tokyo" {
		t.Errorf("expected default timezone, got %q", cfg.Timezone)
	}
	if cfg.StepTimeout != 5*time.Minute {
		t.Errorf("expected default step timeout, got %v", cfg.StepTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()

	envVars := map[string]string{
		"REPRISE_HOME":           dir,
		"REPRISE_TZ":             "UTC",
		"REPRISE_STEP_TIMEOUT":   "45s",
		"REPRISE_RETENTION_DAYS": "14",
		"REPRISE_MAX_BACKUPS":    "3",
		"REPRISE_LISTEN":         "127.0.0.1:9100",
		"REPRISE_API_TOKEN":      "token-from-env",
	}
	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.BaseDir != dir {
		t.Errorf("expected base dir %q, got %q", dir, cfg.BaseDir)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("expected timezone UTC, got %q", cfg.Timezone)
	}
	if cfg.StepTimeout != 45*time.Second {
		t.Errorf("expected step timeout 45s, got %v", cfg.StepTimeout)
	}
	if cfg.RetentionDays != 14 {
		t.Errorf("expected retention 14 days, got %d", cfg.RetentionDays)
	}
	if cfg.MaxBackups != 3 {
		t.Errorf("expected 3 backups, got %d", cfg.MaxBackups)
	}
	if cfg.Listen != "127.0.0.1:9100" {
		t.Errorf("expected listen on 9100, got %q", cfg.Listen)
	}
	if cfg.APIToken != "token-from-env" {
		t.Errorf("expected API token from env, got %q", cfg.APIToken)
	}
	if cfg.WorkflowsDir != filepath.Join(dir, "workflows") {
		t.Errorf("expected workflows dir to follow REPRISE_HOME, got %q", cfg.WorkflowsDir)
	}
}

func TestLoad_StepTimeoutSeconds(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("REPRISE_HOME", dir)
	os.Setenv("REPRISE_STEP_TIMEOUT", "120")
	defer os.Unsetenv("REPRISE_HOME")
	defer os.Unsetenv("REPRISE_STEP_TIMEOUT")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StepTimeout != 120*time.Second {
		t.Errorf("expected bare integer to mean seconds, got %v", cfg.StepTimeout)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("REPRISE_HOME", dir)
	defer os.Unsetenv("REPRISE_HOME")
	defer os.Unsetenv("REPRISE_API_TOKEN")

	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("REPRISE_API_TOKEN=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIToken != "from-dotenv" {
		t.Errorf("expected API token from .env, got %q", cfg.APIToken)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "config_file") {
		t.Errorf("expected config_file error, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Timezone = "Not/AZone" },
			wantErr: "invalid timezone",
		},
		{
			name:    "zero step timeout",
			mutate:  func(c *Config) { c.StepTimeout = 0 },
			wantErr: "step_timeout",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.RetentionDays = -1 },
			wantErr: "retention_days",
		},
		{
			name:    "zero backups",
			mutate:  func(c *Config) { c.MaxBackups = 0 },
			wantErr: "max_backups",
		},
		{
			name:    "bad listen address",
			mutate:  func(c *Config) { c.Listen = "not-an-address" },
			wantErr: "invalid listen address",
		},
		{
			name:    "unknown exporter",
			mutate:  func(c *Config) { c.Observability.Exporter = "jaeger" },
			wantErr: "unknown trace exporter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "UTC"

	loc := cfg.Location()
	if loc != time.UTC {
		t.Errorf("expected UTC location, got %v", loc)
	}

	cfg = Default()
	loc = cfg.Location()
	if loc.String() != "Asia/Tokyo" {
		t.Errorf("expected Asia/Tokyo location, got %v", loc)
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{BaseDir: filepath.Join(dir, "data")}
	cfg.applyDefaults()
	cfg.applyDirDefaults()

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() error: %v", err)
	}

	for _, d := range []string{
		cfg.WorkflowsDir, cfg.TemplatesDir, cfg.RunsDir, cfg.BackupsDir, cfg.SecretsDir,
	} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("expected directory %s: %v", d, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", d)
		}
	}

	info, err := os.Stat(cfg.SecretsDir)
	if err != nil {
		t.Fatalf("stat secrets dir: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("expected secrets dir mode 0700, got %o", perm)
	}
}
