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

package errors

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid definitions, malformed parameters, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation,
	// using a path notation such as "steps[2].when.equals".
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// LoadKind classifies why a workflow definition could not be loaded.
type LoadKind string

const (
	// LoadMissing means no definition file exists for the requested name.
	LoadMissing LoadKind = "missing"

	// LoadEmpty means the file exists but contains no document.
	LoadEmpty LoadKind = "empty"

	// LoadParse means the file is not syntactically valid YAML.
	LoadParse LoadKind = "parse"

	// LoadSchema means the document parsed but failed model validation.
	LoadSchema LoadKind = "schema"
)

// LoadError reports a failure to load a workflow definition from disk.
// Loaders return it as an ordinary value; callers branch on Kind to decide
// whether to surface the message inline (dashboard) or fail the request.
type LoadError struct {
	// Name is the workflow name that was requested.
	Name string

	// Path is the file the loader examined, when one was found.
	Path string

	// Kind classifies the failure.
	Kind LoadKind

	// Message is the human-readable error description.
	Message string
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("workflow %q: %s error", e.Name, e.Kind)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "workflow", "action", "run")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ActionError represents a failure inside an action handler.
// The executor records its message on the failed StepRecord and terminates
// the run.
type ActionError struct {
	// Step is the id of the step whose handler failed
	Step string

	// Type is the registered action type
	Type string

	// Cause is the underlying error returned by the handler
	Cause error
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("step %s (%s): %v", e.Step, e.Type, e.Cause)
	}
	return fmt.Sprintf("action %s: %v", e.Type, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ActionError) Unwrap() error {
	return e.Cause
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "timezone", "workflows_dir")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured deadline.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "step execution", "HTTP request")
	Operation string

	// Duration is how long the operation was allowed to run
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// RecursionError reports a rejected subworkflow invocation, either because
// the target already appears in the call chain or because the chain has
// reached its depth limit. Chain preserves invocation order so the message
// can reproduce the path.
type RecursionError struct {
	// Workflow is the subworkflow that was about to be invoked
	Workflow string

	// Chain is the call chain at the point of rejection, outermost first
	Chain []string

	// Depth holds the configured limit when the rejection is depth-based
	Depth int
}

// Error implements the error interface.
func (e *RecursionError) Error() string {
	chain := strings.Join(e.Chain, " -> ")
	if e.Depth > 0 {
		return fmt.Sprintf("Maximum subworkflow depth (%d) exceeded. Call chain: %s", e.Depth, chain)
	}
	return fmt.Sprintf("Circular dependency detected: %s is already in call chain: %s", e.Workflow, chain)
}
