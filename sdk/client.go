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

// Package sdk is a thin Go client for the reprise daemon HTTP API.
//
// All methods mirror the /v1 endpoints one to one. Responses with a
// non-2xx status decode into an *APIError carrying the status code and
// the daemon's error message.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tombee/reprise/pkg/workflow"
)

// defaultTimeout bounds one API request. Run can take much longer than
// any other call, so it gets its own generous ceiling.
const (
	defaultTimeout = 30 * time.Second
	runTimeout     = 60 * time.Minute
)

// Client talks to a reprise daemon.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for a daemon at base, e.g. "http://127.0.0.1:8066".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx daemon response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// IsBusy reports whether the error is the daemon's already-running
// conflict.
func (e *APIError) IsBusy() bool {
	return e.Status == http.StatusConflict
}

// IsNotFound reports whether the daemon could not find the resource.
func (e *APIError) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

// Workflows lists workflow summaries.
func (c *Client) Workflows(ctx context.Context) ([]workflow.Summary, error) {
	var out struct {
		Workflows []workflow.Summary `json:"workflows"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out.Workflows, nil
}

// Workflow fetches one definition.
func (c *Client) Workflow(ctx context.Context, name string) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := c.do(ctx, http.MethodGet, "/v1/workflows/"+url.PathEscape(name), nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// RunRequest tunes one manual run.
type RunRequest struct {
	Prompt         string         `json:"prompt,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty"`
}

// Run triggers a manual run and waits for the resulting run log.
// A busy slot surfaces as an *APIError with IsBusy true.
func (c *Client) Run(ctx context.Context, name string, req *RunRequest) (*workflow.RunLog, error) {
	var body io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/v1/workflows/"+url.PathEscape(name)+"/run", body)
	if err != nil {
		return nil, err
	}

	// runs block until the workflow finishes
	runClient := &http.Client{
		Transport: c.http.Transport,
		Timeout:   runTimeout,
	}
	resp, err := runClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var log workflow.RunLog
	if err := decodeResponse(resp, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// Stop cancels the live run of a workflow.
func (c *Client) Stop(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/v1/workflows/"+url.PathEscape(name)+"/stop", nil, nil)
}

// RunsQuery filters and pages the journal listing.
type RunsQuery struct {
	Workflow string
	Limit    int
	Offset   int
}

// RunsPage is one page of journal entries.
type RunsPage struct {
	Runs   []workflow.RunLog `json:"runs"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// Runs lists journaled runs, newest first.
func (c *Client) Runs(ctx context.Context, q RunsQuery) (*RunsPage, error) {
	values := url.Values{}
	if q.Workflow != "" {
		values.Set("workflow", q.Workflow)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		values.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/v1/runs"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var page RunsPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Latest returns the most recent run per workflow. Names without any
// recorded run are omitted.
func (c *Client) Latest(ctx context.Context, names []string) (map[string]*workflow.RunLog, error) {
	path := "/v1/runs/latest"
	if len(names) > 0 {
		path += "?workflows=" + url.QueryEscape(strings.Join(names, ","))
	}

	var out struct {
		Latest map[string]*workflow.RunLog `json:"latest"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Latest, nil
}

// Job is one scheduled workflow as reported by the daemon.
type Job struct {
	Workflow string     `json:"workflow"`
	Cron     string     `json:"cron"`
	NextRun  time.Time  `json:"next_run"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	RunCount int64      `json:"run_count"`
}

// Jobs lists the registered scheduler jobs.
func (c *Client) Jobs(ctx context.Context) ([]Job, error) {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/scheduler/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Reload re-walks the workflow directory and returns the number of
// scheduled jobs.
func (c *Client) Reload(ctx context.Context) (int, error) {
	var out struct {
		Scheduled int `json:"scheduled"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/scheduler/reload", nil, &out); err != nil {
		return 0, err
	}
	return out.Scheduled, nil
}

// Preview returns the next firing times of a cron expression.
func (c *Client) Preview(ctx context.Context, cron string, count int) ([]time.Time, error) {
	values := url.Values{"cron": {cron}}
	if count > 0 {
		values.Set("count", strconv.Itoa(count))
	}

	var out struct {
		Next []time.Time `json:"next"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/scheduler/preview?"+values.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Next, nil
}

// CleanupResult reports one journal retention sweep.
type CleanupResult struct {
	DeletedCount int   `json:"deleted_count"`
	KeptCount    int   `json:"kept_count"`
	DeletedBytes int64 `json:"deleted_bytes"`
}

// Cleanup deletes journal files older than the retention window.
func (c *Client) Cleanup(ctx context.Context, retentionDays int) (*CleanupResult, error) {
	body, err := json.Marshal(map[string]int{"retention_days": retentionDays})
	if err != nil {
		return nil, err
	}

	var result CleanupResult
	if err := c.do(ctx, http.MethodPost, "/v1/journal/cleanup", bytes.NewReader(body), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health is the daemon liveness report. ActiveRuns names the workflows
// with a live run at the time of the check.
type Health struct {
	Status        string   `json:"status"`
	UptimeSeconds float64  `json:"uptime_seconds"`
	ActiveRuns    []string `json:"active_runs"`
	ScheduledJobs int      `json:"scheduled_jobs"`
}

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
