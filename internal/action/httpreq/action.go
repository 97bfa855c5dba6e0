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

// Package httpreq provides the http_request builtin action.
package httpreq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tombee/reprise/internal/tracing"
	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/errors"
)

const (
	// DefaultTimeout bounds one request when the step does not set one.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize caps the buffered response body (10MB).
	maxResponseSize = 10 * 1024 * 1024
)

// Action performs an HTTP request with optional authentication. The
// OAuth2 token source cache lives on the action so repeated steps
// against the same token endpoint reuse tokens.
type Action struct {
	client *http.Client
	auth   *authenticator
}

// New creates the http_request action.
func New() *Action {
	return &Action{
		client: tracing.WrapHTTPClient(&http.Client{}),
		auth:   newAuthenticator(),
	}
}

// Execute performs the request and returns the response. Transport
// failures are errors; HTTP error statuses are results, so a workflow
// can judge the status itself.
func (a *Action) Execute(ctx context.Context, params, _ map[string]any) (map[string]any, error) {
	rawURL, _ := params["url"].(string)
	if rawURL == "" {
		return nil, &errors.ValidationError{
			Field:      "url",
			Message:    "url is required",
			Suggestion: "Provide an http or https URL",
		}
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &errors.ValidationError{
			Field:      "url",
			Message:    fmt.Sprintf("invalid URL %q: only http and https are supported", rawURL),
			Suggestion: "Check the URL scheme and syntax",
		}
	}

	method := http.MethodGet
	if m, ok := params["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}

	body, contentType, err := requestBody(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	if headers, ok := params["headers"].(map[string]any); ok {
		for key, value := range headers {
			req.Header.Set(key, fmt.Sprintf("%v", value))
		}
	}

	if authParams, ok := params["auth"].(map[string]any); ok {
		if err := a.auth.apply(ctx, req, []byte(body), authParams); err != nil {
			return nil, err
		}
	}

	timeout, err := requestTimeout(params)
	if err != nil {
		return nil, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := a.client.Do(req.WithContext(reqCtx))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			respHeaders[key] = values
		}
	}

	result := map[string]any{
		"status":  resp.StatusCode,
		"success": resp.StatusCode >= 200 && resp.StatusCode < 300,
		"body":    string(respBody),
		"text":    string(respBody),
		"headers": respHeaders,
	}

	// decoded JSON is offered alongside the raw body when it parses
	if looksLikeJSON(resp.Header.Get("Content-Type"), respBody) {
		var decoded any
		if err := json.Unmarshal(respBody, &decoded); err == nil {
			result["json"] = decoded
		}
	}
	return result, nil
}

// requestBody returns the body string and implied content type. The
// json parameter wins over body and is serialized for the caller.
func requestBody(params map[string]any) (string, string, error) {
	if raw, ok := params["json"]; ok {
		data, err := json.Marshal(raw)
		if err != nil {
			return "", "", &errors.ValidationError{
				Field:   "json",
				Message: fmt.Sprintf("json parameter is not serializable: %v", err),
			}
		}
		return string(data), "application/json", nil
	}
	if raw, ok := params["body"]; ok {
		s, ok := raw.(string)
		if !ok {
			return "", "", &errors.ValidationError{
				Field:      "body",
				Message:    fmt.Sprintf("body must be a string, got %T", raw),
				Suggestion: "Use the json parameter for structured bodies",
			}
		}
		return s, "", nil
	}
	return "", "", nil
}

func requestTimeout(params map[string]any) (time.Duration, error) {
	raw, ok := params["timeout"]
	if !ok {
		return DefaultTimeout, nil
	}
	switch v := raw.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, &errors.ValidationError{
				Field:      "timeout",
				Message:    fmt.Sprintf("invalid timeout %q", v),
				Suggestion: `Use seconds as a number or a duration string such as "45s"`,
			}
		}
		return d, nil
	default:
		return 0, &errors.ValidationError{
			Field:   "timeout",
			Message: fmt.Sprintf("timeout must be a number or duration string, got %T", raw),
		}
	}
}

func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(contentType, "json") {
		return true
	}
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// Metadata describes http_request for the catalog.
func Metadata() *action.Metadata {
	return &action.Metadata{
		Type:        "http_request",
		Title:       "HTTP request",
		Category:    "http",
		Description: "Performs an HTTP request. Error statuses are returned as results so workflows can judge them.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"url":     {Type: "string", Description: "Request URL", Format: "uri"},
				"method":  {Type: "string", Description: "HTTP method", Default: "GET"},
				"headers": {Type: "object", Description: "Request headers"},
				"body":    {Type: "string", Description: "Raw request body"},
				"json":    {Type: "object", Description: "Structured body, serialized as JSON; wins over body"},
				"timeout": {Type: "number", Description: "Request timeout in seconds", Default: 30},
				"auth":    {Type: "object", Description: "Authentication: {type: bearer|basic|oauth2|aws_sigv4, ...}"},
			},
			Required: []string{"url"},
		},
		Output: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"status":  {Type: "number", Description: "HTTP status code"},
				"success": {Type: "boolean", Description: "True for 2xx statuses"},
				"body":    {Type: "string", Description: "Response body"},
				"text":    {Type: "string", Description: "Alias of body"},
				"json":    {Type: "object", Description: "Decoded body when it parses as JSON"},
				"headers": {Type: "object", Description: "Response headers"},
			},
		},
	}
}
