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

// Package action defines the contract between workflow steps and the
// handlers that execute them, plus a registry for looking handlers up
// by type name.
//
// An action receives its expanded step parameters and the current run
// context, and returns a result map that later steps can reference.
// Failures are surfaced as errors, never as ad-hoc status fields in
// the result.
package action

import (
	"context"
)

// Handler executes one workflow step.
type Handler interface {
	// Execute runs the action with expanded parameters and the current
	// run context. The result map is published to the run context under
	// the step's id on success.
	Execute(ctx context.Context, params map[string]any, runContext map[string]any) (map[string]any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, params map[string]any, runContext map[string]any) (map[string]any, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, params map[string]any, runContext map[string]any) (map[string]any, error) {
	return f(ctx, params, runContext)
}

// Metadata describes an action type for editors and API consumers.
// The executor never inspects it.
type Metadata struct {
	// Type is the registered action type name.
	Type string `json:"type"`

	// Title is a short human-readable name.
	Title string `json:"title,omitempty"`

	// Category groups related actions in the editor.
	Category string `json:"category,omitempty"`

	// Description explains what the action does.
	Description string `json:"description,omitempty"`

	// Params describes the accepted parameters.
	Params *ParameterSchema `json:"params,omitempty"`

	// Output describes the result shape.
	Output *ParameterSchema `json:"output,omitempty"`
}

// ParameterSchema defines a set of parameters using JSON Schema conventions.
type ParameterSchema struct {
	// Type is the JSON type (e.g., "object", "string", "number")
	Type string `json:"type"`

	// Properties defines nested properties (for type="object")
	Properties map[string]*Property `json:"properties,omitempty"`

	// Required lists the required property names
	Required []string `json:"required,omitempty"`

	// Description provides human-readable context
	Description string `json:"description,omitempty"`
}

// Property defines a single property in a parameter schema.
type Property struct {
	// Type is the JSON type of this property
	Type string `json:"type"`

	// Description explains what this property represents
	Description string `json:"description,omitempty"`

	// Enum lists allowed values (for validation)
	Enum []interface{} `json:"enum,omitempty"`

	// Default provides a default value if not specified
	Default interface{} `json:"default,omitempty"`

	// Format specifies a format hint (e.g., "uri", "email", "date-time")
	Format string `json:"format,omitempty"`
}
