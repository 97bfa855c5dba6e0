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

// Package api provides the daemon's HTTP API.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tombee/reprise/internal/backup"
	"github.com/tombee/reprise/internal/daemon/httputil"
	"github.com/tombee/reprise/internal/journal"
	"github.com/tombee/reprise/internal/runner"
	"github.com/tombee/reprise/internal/scheduler"
	"github.com/tombee/reprise/internal/tracing"
)

// Version identifies the running build.
type Version struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

// Handler serves the v1 API. All state access goes through the
// services; handlers hold no state of their own.
type Handler struct {
	runner    *runner.Service
	scheduler *scheduler.Scheduler
	backups   *backup.Manager
	version   Version
	metrics   http.Handler
	logger    *slog.Logger
	started   time.Time
}

// Config carries the handler's dependencies.
type Config struct {
	Runner    *runner.Service
	Scheduler *scheduler.Scheduler
	Backups   *backup.Manager
	Version   Version
	Metrics   http.Handler
	Logger    *slog.Logger
}

// NewHandler assembles the API handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		runner:    cfg.Runner,
		scheduler: cfg.Scheduler,
		backups:   cfg.Backups,
		version:   cfg.Version,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "api"),
		started:   time.Now(),
	}
}

// Routes builds the route table.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/workflows", h.handleListWorkflows)
	mux.HandleFunc("GET /v1/workflows/{name}", h.handleGetWorkflow)
	mux.HandleFunc("PUT /v1/workflows/{name}", h.handlePutWorkflow)
	mux.HandleFunc("POST /v1/workflows/{name}/run", h.handleRun)
	mux.HandleFunc("POST /v1/workflows/{name}/stop", h.handleStop)
	mux.HandleFunc("GET /v1/workflows/{name}/backups", h.handleListBackups)

	mux.HandleFunc("GET /v1/runs", h.handleListRuns)
	mux.HandleFunc("GET /v1/runs/latest", h.handleLatestRuns)
	mux.HandleFunc("POST /v1/journal/cleanup", h.handleCleanup)

	mux.HandleFunc("GET /v1/scheduler/jobs", h.handleSchedulerJobs)
	mux.HandleFunc("POST /v1/scheduler/reload", h.handleSchedulerReload)
	mux.HandleFunc("GET /v1/scheduler/preview", h.handleSchedulerPreview)

	mux.HandleFunc("GET /v1/health", h.handleHealth)
	mux.HandleFunc("GET /v1/version", h.handleVersion)

	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	return mux
}

// Middleware wraps mux with correlation IDs and request logging.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			h.logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"correlation_id", string(tracing.FromContext(r.Context())),
				"duration_ms", time.Since(start).Milliseconds())
		}()
		next.ServeHTTP(w, r)
	})
	return tracing.CorrelationMiddleware(logged)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"active_runs":    h.runner.Manager().Running(),
		"scheduled_jobs": len(h.scheduler.Jobs()),
	})
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.version)
}

func (h *Handler) journal() *journal.Journal {
	return h.runner.Journal()
}
