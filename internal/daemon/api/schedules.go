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

	"github.com/tombee/reprise/internal/daemon/httputil"
)

const (
	defaultPreviewCount = 5
	maxPreviewCount     = 50
)

func (h *Handler) handleSchedulerJobs(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs": h.scheduler.Jobs(),
	})
}

func (h *Handler) handleSchedulerReload(w http.ResponseWriter, r *http.Request) {
	count := h.scheduler.Reload()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"scheduled": count,
	})
}

func (h *Handler) handleSchedulerPreview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cron := query.Get("cron")
	if cron == "" {
		httputil.WriteError(w, http.StatusBadRequest, "cron parameter is required")
		return
	}

	count := defaultPreviewCount
	if raw := query.Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		count = min(parsed, maxPreviewCount)
	}

	times, err := h.scheduler.Preview(cron, count)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"cron": cron,
		"next": times,
	})
}
