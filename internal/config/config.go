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
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	repriseerrors "github.com/tombee/reprise/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the complete Reprise configuration.
type Config struct {
	// BaseDir is the root data directory holding workflows, runs,
	// backups and secrets.
	// Environment: REPRISE_HOME
	// Default: ~/.reprise
	BaseDir string `yaml:"base_dir,omitempty"`

	// Timezone is the IANA timezone name used for run IDs, journal
	// dates and schedule evaluation.
	// Environment: REPRISE_TZ
	// Default: Asia/Tokyo
	Timezone string `yaml:"timezone,omitempty"`

	// WorkflowsDir is the directory holding workflow definitions.
	// Default: <base_dir>/workflows
	WorkflowsDir string `yaml:"workflows_dir,omitempty"`

	// TemplatesDir is the directory holding starter templates.
	// Default: <workflows_dir>/templates
	TemplatesDir string `yaml:"templates_dir,omitempty"`

	// RunsDir is the directory holding daily run journals.
	// Default: <base_dir>/runs
	RunsDir string `yaml:"runs_dir,omitempty"`

	// BackupsDir is the directory holding workflow definition snapshots.
	// Default: <base_dir>/backups
	BackupsDir string `yaml:"backups_dir,omitempty"`

	// SecretsDir is the directory holding API key files.
	// Default: <base_dir>/secrets
	SecretsDir string `yaml:"secrets_dir,omitempty"`

	// StepTimeout is the per-step execution deadline.
	// Environment: REPRISE_STEP_TIMEOUT
	// Default: 5m
	StepTimeout time.Duration `yaml:"step_timeout,omitempty"`

	// RetentionDays is how many days of run journals to keep.
	// Environment: REPRISE_RETENTION_DAYS
	// Default: 3
	RetentionDays int `yaml:"retention_days,omitempty"`

	// MaxBackups is how many snapshots to keep per workflow.
	// Environment: REPRISE_MAX_BACKUPS
	// Default: 10
	MaxBackups int `yaml:"max_backups,omitempty"`

	// Listen is the daemon's HTTP listen address.
	// Environment: REPRISE_LISTEN
	// Default: 127.0.0.1:8066
	Listen string `yaml:"listen,omitempty"`

	// APIToken authenticates daemon API requests when set.
	// Environment: REPRISE_API_TOKEN
	APIToken string `yaml:"api_token,omitempty"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log,omitempty"`

	// AI configures defaults for AI generation steps.
	AI AIConfig `yaml:"ai,omitempty"`

	// Observability configures tracing and metrics.
	Observability ObservabilityConfig `yaml:"observability,omitempty"`

	// location caches the resolved Timezone. Populated by Validate.
	location *time.Location
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is the log level (trace, debug, info, warn, error).
	Level string `yaml:"level,omitempty"`

	// Format is the log format (json, text).
	Format string `yaml:"format,omitempty"`

	// AddSource adds source file and line information to logs.
	AddSource bool `yaml:"add_source,omitempty"`
}

// AIConfig configures defaults for AI generation steps.
type AIConfig struct {
	// DefaultProvider is used when a step omits the provider parameter.
	// Environment: REPRISE_AI_PROVIDER
	// Default: openai
	DefaultProvider string `yaml:"default_provider,omitempty"`

	// RequestTimeout bounds a single provider HTTP request.
	// Default: 2m
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// MaxRetries is the number of retries for transient provider errors.
	// Default: 2
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// ObservabilityConfig configures tracing and metrics.
type ObservabilityConfig struct {
	// Enabled activates span export. Metrics are always registered;
	// the /metrics endpoint is served regardless.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this process in traces.
	// Default: reprise
	ServiceName string `yaml:"service_name,omitempty"`

	// Exporter selects the span exporter: stdout, otlp-http or otlp-grpc.
	// Default: stdout
	Exporter string `yaml:"exporter,omitempty"`

	// Endpoint is the OTLP collector endpoint for the otlp-* exporters.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	base := defaultBaseDir()

	cfg := &Config{
		BaseDir:       base,
		Timezone:      "Asia/Tokyo",
		StepTimeout:   5 * time.Minute,
		RetentionDays: 3,
		MaxBackups:    10,
		Listen:        "127.0.0.1:8066",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		AI: AIConfig{
			DefaultProvider: "openai",
			RequestTimeout:  2 * time.Minute,
			MaxRetries:      2,
		},
		Observability: ObservabilityConfig{
			Enabled:     false,
			ServiceName: "reprise",
			Exporter:    "stdout",
		},
	}
	cfg.applyDirDefaults()
	return cfg
}

// Load loads configuration from defaults, an optional YAML file, a
// best-effort .env file at the base directory, and environment
// variables, in increasing order of precedence.
// If configPath is empty, the default config file is used when present.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = findDefaultConfig()
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &repriseerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()

	// Best-effort .env: values never override variables already set
	// in the process environment.
	_ = godotenv.Load(filepath.Join(cfg.BaseDir, ".env"))

	cfg.loadFromEnv()
	cfg.applyDirDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, &repriseerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// findDefaultConfig returns the first existing config file among the
// base dir and the XDG config dir, or empty when neither exists.
func findDefaultConfig() string {
	candidates := []string{
		filepath.Join(defaultBaseDir(), "config.yaml"),
	}
	if p, err := ConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// applyDefaults fills in zero values with sensible defaults.
// This allows minimal configs to work without specifying all fields.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.BaseDir == "" {
		c.BaseDir = defaults.BaseDir
	}
	if c.Timezone == "" {
		c.Timezone = defaults.Timezone
	}
	if c.StepTimeout == 0 {
		c.StepTimeout = defaults.StepTimeout
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = defaults.RetentionDays
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = defaults.MaxBackups
	}
	if c.Listen == "" {
		c.Listen = defaults.Listen
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.AI.DefaultProvider == "" {
		c.AI.DefaultProvider = defaults.AI.DefaultProvider
	}
	if c.AI.RequestTimeout == 0 {
		c.AI.RequestTimeout = defaults.AI.RequestTimeout
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = defaults.AI.MaxRetries
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = defaults.Observability.ServiceName
	}
	if c.Observability.Exporter == "" {
		c.Observability.Exporter = defaults.Observability.Exporter
	}
}

// applyDirDefaults derives unset directory paths from BaseDir.
func (c *Config) applyDirDefaults() {
	if c.WorkflowsDir == "" {
		c.WorkflowsDir = filepath.Join(c.BaseDir, "workflows")
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = filepath.Join(c.WorkflowsDir, "templates")
	}
	if c.RunsDir == "" {
		c.RunsDir = filepath.Join(c.BaseDir, "runs")
	}
	if c.BackupsDir == "" {
		c.BackupsDir = filepath.Join(c.BaseDir, "backups")
	}
	if c.SecretsDir == "" {
		c.SecretsDir = filepath.Join(c.BaseDir, "secrets")
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("REPRISE_HOME"); val != "" {
		c.BaseDir = val
		// Derived dirs follow the new base unless set explicitly below.
		c.WorkflowsDir = ""
		c.TemplatesDir = ""
		c.RunsDir = ""
		c.BackupsDir = ""
		c.SecretsDir = ""
	}
	if val := os.Getenv("REPRISE_TZ"); val != "" {
		c.Timezone = val
	}
	if val := os.Getenv("REPRISE_WORKFLOWS_DIR"); val != "" {
		c.WorkflowsDir = val
	}
	if val := os.Getenv("REPRISE_STEP_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.StepTimeout = duration
		} else if secs, err := strconv.Atoi(val); err == nil {
			c.StepTimeout = time.Duration(secs) * time.Second
		}
	}
	if val := os.Getenv("REPRISE_RETENTION_DAYS"); val != "" {
		if days, err := strconv.Atoi(val); err == nil {
			c.RetentionDays = days
		}
	}
	if val := os.Getenv("REPRISE_MAX_BACKUPS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxBackups = n
		}
	}
	if val := os.Getenv("REPRISE_LISTEN"); val != "" {
		c.Listen = val
	}
	if val := os.Getenv("REPRISE_API_TOKEN"); val != "" {
		c.APIToken = val
	}
	if val := os.Getenv("REPRISE_AI_PROVIDER"); val != "" {
		c.AI.DefaultProvider = strings.ToLower(val)
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	if val := os.Getenv("REPRISE_TRACE_EXPORTER"); val != "" {
		c.Observability.Enabled = true
		c.Observability.Exporter = strings.ToLower(val)
	}
	if val := os.Getenv("REPRISE_TRACE_ENDPOINT"); val != "" {
		c.Observability.Endpoint = val
	}
}

// Validate checks the configuration for consistency and resolves the
// timezone.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	if c.StepTimeout <= 0 {
		return fmt.Errorf("step_timeout must be positive, got %v", c.StepTimeout)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative, got %d", c.RetentionDays)
	}
	if c.MaxBackups < 1 {
		return fmt.Errorf("max_backups must be at least 1, got %d", c.MaxBackups)
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}

	switch c.Observability.Exporter {
	case "", "stdout", "otlp-http", "otlp-grpc":
	default:
		return fmt.Errorf("unknown trace exporter %q", c.Observability.Exporter)
	}

	return nil
}

// Location returns the resolved timezone. It falls back to resolving
// Timezone on first use when the config was built without Load.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	c.location = loc
	return loc
}

// EnsureDirs creates the data directories if they do not exist.
// The secrets directory is created owner-only.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.BaseDir,
		c.WorkflowsDir,
		c.TemplatesDir,
		c.RunsDir,
		c.BackupsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(c.SecretsDir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", c.SecretsDir, err)
	}
	return nil
}

// defaultBaseDir returns REPRISE_HOME or ~/.reprise.
func defaultBaseDir() string {
	if dir := os.Getenv("REPRISE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reprise"
	}
	return filepath.Join(home, ".reprise")
}
