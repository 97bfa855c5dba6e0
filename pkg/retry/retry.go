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

// Package retry provides a bounded retry wrapper with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts including the first
	// (default: 3). Must be at least 1.
	MaxAttempts int

	// Delay is the wait before the first retry (default: 1s).
	Delay time.Duration

	// Backoff is the multiplier applied per retry (default: 2.0).
	// The wait before retry k is Delay * Backoff^(k-1).
	Backoff float64

	// Retriable reports whether an error is worth retrying.
	// When nil, every error is retriable.
	Retriable func(error) bool
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Delay:       1 * time.Second,
		Backoff:     2.0,
	}
}

// Validate checks if the retry configuration is valid.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be non-negative, got %v", c.Delay)
	}
	if c.Backoff < 1.0 {
		return fmt.Errorf("backoff must be >= 1.0, got %f", c.Backoff)
	}
	return nil
}

// Do runs fn with bounded retries and exponential backoff.
//
// Behavior:
//   - Returns on the first nil error.
//   - Non-retriable errors propagate immediately.
//   - On exhaustion, the last error is returned unchanged.
//   - The backoff sleep is interruptible by context cancellation.
func Do(ctx context.Context, config *Config, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultConfig()
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if config.Retriable != nil && !config.Retriable(lastErr) {
			return lastErr
		}

		if attempt >= config.MaxAttempts {
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Wait before retry k equals Delay * Backoff^(k-1).
		delay := time.Duration(float64(config.Delay) * pow(config.Backoff, attempt-1))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// DoValue runs fn with the same retry behavior as Do and returns its
// value on success.
func DoValue[T any](ctx context.Context, config *Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, config, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// pow calculates base^exp for integer exponents.
func pow(base float64, exp int) float64 {
	if exp == 0 {
		return 1.0
	}
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
