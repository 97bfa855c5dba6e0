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

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tombee/reprise/internal/daemon/httputil"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultRunsLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxRunsLimit)
	}

	offset := 0
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	workflowFilter := query.Get("workflow")
	runs := h.journal().All(limit, offset, workflowFilter)
	total := h.journal().CountAll(workflowFilter)

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleLatestRuns returns the most recent run per workflow. Without a
// workflows parameter every known workflow is reported.
func (h *Handler) handleLatestRuns(w http.ResponseWriter, r *http.Request) {
	var names []string
	if raw := r.URL.Query().Get("workflows"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				names = append(names, trimmed)
			}
		}
	} else {
		for _, summary := range h.runner.Loader().List() {
			names = append(names, summary.Name)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"latest": h.journal().LatestMap(names),
	})
}

// cleanupRequest is the body of POST /v1/journal/cleanup.
type cleanupRequest struct {
	RetentionDays int `json:"retention_days"`
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.RetentionDays < 1 {
		httputil.WriteError(w, http.StatusBadRequest, "retention_days must be at least 1")
		return
	}

	result, err := h.journal().Cleanup(req.RetentionDays)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
