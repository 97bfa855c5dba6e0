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
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tombee/reprise/internal/daemon/httputil"
	"github.com/tombee/reprise/internal/runner"
	"github.com/tombee/reprise/pkg/workflow"
)

// maxDefinitionSize caps an uploaded workflow definition (1MB).
const maxDefinitionSize = 1 << 20

// runRequest is the body of POST /v1/workflows/{name}/run.
type runRequest struct {
	// Prompt overrides the first ai_generate step's prompt.
	Prompt string `json:"prompt,omitempty"`

	// Inputs seed the run context.
	Inputs map[string]any `json:"inputs,omitempty"`

	// TimeoutSeconds overrides the per-step deadline for this run.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

func (h *Handler) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"workflows": h.runner.Loader().List(),
	})
}

func (h *Handler) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	wf, loadErr := h.runner.Loader().Load(name)
	if loadErr != nil {
		httputil.WriteDomainError(w, loadErr)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wf)
}

// handlePutWorkflow validates the uploaded YAML, snapshots the current
// definition, then saves. The snapshot happens before the write so a
// bad save never loses the previous version.
func (h *Handler) handlePutWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDefinitionSize+1))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}
	if len(body) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "request body is empty")
		return
	}
	if len(body) > maxDefinitionSize {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "definition exceeds 1MB")
		return
	}

	wf, err := workflow.Parse(body)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if wf.Name == "" {
		wf.Name = name
	}
	if wf.Name != name {
		httputil.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("definition name %q does not match URL name %q", wf.Name, name))
		return
	}
	if err := wf.Validate(); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	created := true
	if previous := h.runner.Loader().RawContent(name); previous != "" {
		created = false
		if h.backups != nil {
			if _, err := h.backups.Snapshot(name, previous); err != nil {
				httputil.WriteError(w, http.StatusInternalServerError, "backing up previous definition: "+err.Error())
				return
			}
		}
	}

	path, err := h.runner.Loader().Save(wf)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	// pick up cron changes immediately
	h.scheduler.Reload()

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, map[string]any{
		"name": wf.Name,
		"path": path,
	})
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req runRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	opts := &runner.RunOptions{
		Prompt: req.Prompt,
		Inputs: req.Inputs,
	}
	if req.TimeoutSeconds > 0 {
		opts.StepTimeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	log, err := h.runner.Run(r.Context(), name, opts)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, log)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.runner.Stop(name); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"workflow": name,
		"stopped":  true,
	})
}

func (h *Handler) handleListBackups(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if h.backups == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"workflow": name, "backups": []any{}})
		return
	}
	snapshots, err := h.backups.List(name)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"workflow": name,
		"backups":  snapshots,
	})
}
