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

// Package ai provides the ai_generate builtin action and its provider
// clients. Providers are plain HTTP clients; API keys resolve through
// the secrets chain at call time, never at startup.
package ai

import (
	"context"
	"fmt"
)

// Request is a single text generation call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// Usage reports token consumption when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a provider's answer to a Request.
type Response struct {
	Text  string
	Model string
	Usage *Usage
}

// Provider generates text. Implementations must be safe for
// concurrent use.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// statusError carries the HTTP status of a failed provider call so
// the retry policy can tell rate limits from bad requests.
type statusError struct {
	provider string
	status   int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.provider, e.status, e.body)
}

// transient reports whether the failure is worth retrying. Rate
// limits and server errors are; auth and validation errors are not.
func (e *statusError) transient() bool {
	return e.status == 429 || e.status >= 500
}

// truncateBody keeps error messages readable when a provider returns
// a large error document.
func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
