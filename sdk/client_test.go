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

package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_WorkflowsAndAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/v1/workflows", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"workflows": []map[string]any{
				{"name": "daily_report", "trigger_type": "schedule", "valid": true},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("tok"))
	workflows, err := c.Workflows(context.Background())
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "daily_report", workflows[0].Name)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestClient_RunBusy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "workflow is already running"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Run(context.Background(), "daily_report", nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.True(t, apiErr.IsBusy())
	assert.Contains(t, apiErr.Error(), "already running")
}

func TestClient_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/workflows/daily_report/run", r.URL.Path)
		var req RunRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Prompt)
		json.NewEncoder(w).Encode(map[string]any{
			"run_id": "20260825_090000_ab12", "workflow": "daily_report", "status": "success",
		})
	}))
	defer srv.Close()

	log, err := New(srv.URL).Run(context.Background(), "daily_report", &RunRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "success", string(log.Status))
	assert.Equal(t, "20260825_090000_ab12", log.RunID)
}

func TestClient_StopNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "workflow is not running"})
	}))
	defer srv.Close()

	err := New(srv.URL).Stop(context.Background(), "daily_report")
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.True(t, apiErr.IsNotFound())
}

func TestClient_RunsQueryString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "daily_report", r.URL.Query().Get("workflow"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{"runs": []any{}, "total": 0, "limit": 5, "offset": 0})
	}))
	defer srv.Close()

	page, err := New(srv.URL).Runs(context.Background(), RunsQuery{Workflow: "daily_report", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestClient_SchedulerAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/scheduler/reload":
			json.NewEncoder(w).Encode(map[string]int{"scheduled": 2})
		case "/v1/health":
			json.NewEncoder(w).Encode(map[string]any{"status": "ok", "active_runs": []string{"daily_report"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)

	count, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, []string{"daily_report"}, h.ActiveRuns)
}

func TestClient_PlainTextErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Health(context.Background())
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)
}
