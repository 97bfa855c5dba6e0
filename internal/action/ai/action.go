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

package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/tombee/reprise/internal/config"
	"github.com/tombee/reprise/internal/secrets"
	"github.com/tombee/reprise/pkg/action"
	"github.com/tombee/reprise/pkg/errors"
	"github.com/tombee/reprise/pkg/retry"
)

// maxProviderResponse caps the buffered provider response (4MB).
const maxProviderResponse = 4 * 1024 * 1024

// Action implements ai_generate. Provider selection is per step with
// a configured default; transient provider failures retry with
// backoff.
type Action struct {
	providers       map[string]Provider
	defaultProvider string
	timeout         time.Duration
	retryCfg        *retry.Config
	logger          *slog.Logger
}

// New wires the built-in providers. cfg supplies the default provider
// and the per-request timeout.
func New(cfg config.AIConfig, keys *secrets.Resolver, logger *slog.Logger) *Action {
	a := &Action{
		providers: map[string]Provider{
			"openai": NewOpenAI(keys, ""),
			"gemini": NewGemini(keys, ""),
		},
		defaultProvider: cfg.DefaultProvider,
		timeout:         cfg.RequestTimeout,
		logger:          logger.With("component", "action.ai"),
	}
	if a.defaultProvider == "" {
		a.defaultProvider = "openai"
	}
	if a.timeout <= 0 {
		a.timeout = 2 * time.Minute
	}
	a.retryCfg = &retry.Config{
		MaxAttempts: cfg.MaxRetries + 1,
		Delay:       time.Second,
		Backoff:     2.0,
		Retriable:   isTransient,
	}
	return a
}

func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.transient()
	}
	// transport failures (timeouts, resets) retry; everything decoded
	// from the provider does not
	return strings.Contains(err.Error(), "calling ")
}

// Execute generates text from a prompt.
func (a *Action) Execute(ctx context.Context, params, _ map[string]any) (map[string]any, error) {
	prompt, _ := params["prompt"].(string)
	if prompt == "" {
		return nil, &errors.ValidationError{
			Field:      "prompt",
			Message:    "prompt is required",
			Suggestion: "Provide the text to send to the model",
		}
	}

	providerName := a.defaultProvider
	if p, ok := params["provider"].(string); ok && p != "" {
		providerName = strings.ToLower(p)
	}
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, &errors.ValidationError{
			Field:      "provider",
			Message:    fmt.Sprintf("unknown provider %q", providerName),
			Suggestion: "Available providers: " + strings.Join(a.providerNames(), ", "),
		}
	}

	req := &Request{Prompt: prompt}
	if model, ok := params["model"].(string); ok {
		req.Model = model
	}
	if system, ok := params["system"].(string); ok {
		req.System = system
	}
	if raw, ok := params["temperature"]; ok {
		switch v := raw.(type) {
		case float64:
			req.Temperature = &v
		case int:
			f := float64(v)
			req.Temperature = &f
		default:
			return nil, &errors.ValidationError{
				Field:   "temperature",
				Message: fmt.Sprintf("temperature must be a number, got %T", raw),
			}
		}
	}
	if raw, ok := params["max_tokens"]; ok {
		switch v := raw.(type) {
		case int:
			req.MaxTokens = v
		case float64:
			req.MaxTokens = int(v)
		default:
			return nil, &errors.ValidationError{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens must be an integer, got %T", raw),
			}
		}
	}

	start := time.Now()
	resp, err := retry.DoValue(ctx, a.retryCfg, func(ctx context.Context) (*Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return provider.Generate(callCtx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("ai generation failed: %w", err)
	}

	a.logger.Debug("generation complete",
		"provider", providerName,
		"model", resp.Model,
		"duration", time.Since(start))

	result := map[string]any{
		"text":     resp.Text,
		"model":    resp.Model,
		"provider": providerName,
	}
	if resp.Usage != nil {
		result["usage"] = map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

func (a *Action) providerNames() []string {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metadata describes ai_generate for the catalog.
func Metadata() *action.Metadata {
	return &action.Metadata{
		Type:        "ai_generate",
		Title:       "AI text generation",
		Category:    "ai",
		Description: "Generates text from a prompt using a configured model provider.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"prompt":      {Type: "string", Description: "Text sent to the model"},
				"system":      {Type: "string", Description: "System instruction"},
				"provider":    {Type: "string", Description: "Model provider", Enum: []any{"openai", "gemini"}},
				"model":       {Type: "string", Description: "Model name; the provider default when omitted"},
				"temperature": {Type: "number", Description: "Sampling temperature"},
				"max_tokens":  {Type: "number", Description: "Output token limit"},
			},
			Required: []string{"prompt"},
		},
		Output: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"text":     {Type: "string", Description: "Generated text"},
				"model":    {Type: "string", Description: "Model that produced the text"},
				"provider": {Type: "string", Description: "Provider that served the request"},
				"usage":    {Type: "object", Description: "Token usage when the provider reports it"},
			},
		},
	}
}
