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

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvBackend reads secrets from the process environment. The key
// "openai_api_key" maps to the variable OPENAI_API_KEY. Read-only and
// always available, so an exported variable beats every other backend.
type EnvBackend struct{}

// NewEnvBackend creates the environment backend.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{}
}

// Name returns "env".
func (e *EnvBackend) Name() string { return "env" }

// EnvVar returns the environment variable name for a secret key.
func EnvVar(key string) string {
	return strings.ToUpper(key)
}

// Get reads the variable named after the key.
func (e *EnvBackend) Get(_ context.Context, key string) (string, error) {
	if value := os.Getenv(EnvVar(key)); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: environment variable %s not set", ErrNotFound, EnvVar(key))
}

// Set is unsupported; the environment is read-only.
func (e *EnvBackend) Set(context.Context, string, string) error {
	return ErrReadOnly
}

// Delete is unsupported; the environment is read-only.
func (e *EnvBackend) Delete(context.Context, string) error {
	return ErrReadOnly
}

// List cannot tell secrets apart from ordinary variables, so it
// returns nothing.
func (e *EnvBackend) List(context.Context) ([]string, error) {
	return []string{}, nil
}

// Available always reports true.
func (e *EnvBackend) Available() bool { return true }

// Priority returns the highest standard priority.
func (e *EnvBackend) Priority() int { return EnvPriority }

// ReadOnly marks the backend read-only for the resolver.
func (e *EnvBackend) ReadOnly() bool { return true }
