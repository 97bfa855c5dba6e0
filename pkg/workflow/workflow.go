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

// Package workflow provides the workflow model, loader and executor.
//
// A workflow is a trigger plus an ordered list of typed steps, loaded from
// a YAML definition. The executor runs steps sequentially, expanding step
// parameters against an accumulated run context and recording the outcome
// of each step in a RunLog. Optional per-step conditions gate execution on
// the output of earlier steps.
package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tombee/reprise/pkg/errors"
	"gopkg.in/yaml.v3"
)

// TriggerType identifies how a workflow is invoked.
type TriggerType string

const (
	// TriggerManual marks workflows started on demand only.
	TriggerManual TriggerType = "manual"

	// TriggerSchedule marks workflows fired by a cron expression.
	TriggerSchedule TriggerType = "schedule"

	// TriggerWebhook is reserved for externally driven workflows.
	// The engine accepts it but never dispatches it.
	TriggerWebhook TriggerType = "webhook"
)

// MatchMode selects how a step condition compares values.
type MatchMode string

const (
	// MatchEquals compares for equality after normalization.
	MatchEquals MatchMode = "equals"

	// MatchContains checks substring containment after normalization.
	// Applies to string operands only; non-strings fall back to equality.
	MatchContains MatchMode = "contains"
)

// stepIDPattern restricts step identifiers so they stay safe as context
// keys and template variable names.
var stepIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Workflow is a complete workflow definition as loaded from disk.
//
// Fields with documented defaults use pointers so that a definition which
// never mentions the field round-trips without gaining an explicit value.
type Workflow struct {
	// Name is the workflow identifier; the definition filename stem
	Name string `yaml:"name" json:"name"`

	// Description provides human-readable context (optional)
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Folder groups workflows in listings; it has no semantic effect
	Folder string `yaml:"folder,omitempty" json:"folder,omitempty"`

	// Enabled gates scheduler registration (default true).
	// Disabled workflows can still be run manually.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Trigger defines how this workflow is invoked
	Trigger Trigger `yaml:"trigger" json:"trigger"`

	// Steps are the ordered executable units; at least one is required
	Steps []Step `yaml:"steps" json:"steps"`
}

// IsEnabled reports whether the workflow should be registered with the
// scheduler. Unset means enabled.
func (w *Workflow) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Step returns the step with the given id, or nil.
func (w *Workflow) Step(id string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// Trigger defines how a workflow can be invoked.
type Trigger struct {
	// Type is one of manual, schedule or webhook
	Type TriggerType `yaml:"type" json:"type"`

	// Cron is a five-field cron expression, required when Type is schedule.
	// It is evaluated in the engine's configured timezone.
	Cron string `yaml:"cron,omitempty" json:"cron,omitempty"`

	// Path is reserved for webhook triggers
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Step is a single executable unit of a workflow.
type Step struct {
	// ID is the unique step identifier within this workflow.
	// Restricted to [A-Za-z0-9_] so it can serve as a context key.
	ID string `yaml:"id" json:"id"`

	// Type names the action registered for this step
	Type string `yaml:"type" json:"type"`

	// Params are passed to the action after template expansion.
	// The engine treats them as an opaque value tree.
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// When gates execution on the output of an earlier step (optional)
	When *Condition `yaml:"when,omitempty" json:"when,omitempty"`

	// Meta carries UI hints such as editor positions; preserved verbatim
	Meta map[string]any `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// Condition gates a step on the recorded output of an earlier step.
//
// Trim and CaseInsensitive only apply when both the observed value and
// Equals are strings.
type Condition struct {
	// Step is the id of a previously executed step in this run
	Step string `yaml:"step" json:"step"`

	// Field is the output key inspected on that step (default "text")
	Field string `yaml:"field,omitempty" json:"field,omitempty"`

	// Equals is the comparand; any YAML value
	Equals any `yaml:"equals" json:"equals"`

	// Match is equals or contains (default equals)
	Match MatchMode `yaml:"match,omitempty" json:"match,omitempty"`

	// Trim strips surrounding whitespace before comparing (default true)
	Trim *bool `yaml:"trim,omitempty" json:"trim,omitempty"`

	// CaseInsensitive lowercases both sides before comparing (default true)
	CaseInsensitive *bool `yaml:"case_insensitive,omitempty" json:"case_insensitive,omitempty"`
}

// TargetField returns the output key to inspect, defaulting to "text".
func (c *Condition) TargetField() string {
	if c.Field == "" {
		return "text"
	}
	return c.Field
}

// MatchKind returns the comparison mode, defaulting to equals.
func (c *Condition) MatchKind() MatchMode {
	if c.Match == "" {
		return MatchEquals
	}
	return c.Match
}

// TrimEnabled reports whether string operands are trimmed. Unset means true.
func (c *Condition) TrimEnabled() bool {
	return c.Trim == nil || *c.Trim
}

// IgnoresCase reports whether string comparison folds case. Unset means true.
func (c *Condition) IgnoresCase() bool {
	return c.CaseInsensitive == nil || *c.CaseInsensitive
}

// AsMap renders the condition with all defaults resolved. Skip records
// embed this so a run log shows exactly what was compared.
func (c *Condition) AsMap() map[string]any {
	return map[string]any{
		"step":             c.Step,
		"field":            c.TargetField(),
		"equals":           c.Equals,
		"match":            string(c.MatchKind()),
		"trim":             c.TrimEnabled(),
		"case_insensitive": c.IgnoresCase(),
	}
}

// Parse unmarshals a YAML definition, normalizes it and validates it.
func Parse(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}

	w.Normalize()

	if err := w.Validate(); err != nil {
		return nil, err
	}

	return &w, nil
}

// Normalize trims identifier-like fields in place. It never invents
// values for absent fields so that defaults stay implicit on save.
func (w *Workflow) Normalize() {
	w.Name = strings.TrimSpace(w.Name)
	w.Folder = strings.TrimSpace(w.Folder)
	w.Trigger.Cron = strings.TrimSpace(w.Trigger.Cron)
	for i := range w.Steps {
		step := &w.Steps[i]
		step.ID = strings.TrimSpace(step.ID)
		step.Type = strings.TrimSpace(step.Type)
		if step.When != nil {
			step.When.Step = strings.TrimSpace(step.When.Step)
			step.When.Field = strings.TrimSpace(step.When.Field)
			step.When.Match = MatchMode(strings.ToLower(strings.TrimSpace(string(step.When.Match))))
		}
	}
}

// Validate checks the definition against the model rules. Errors carry a
// path-shaped Field such as "steps[2].when.step" so editors can point at
// the offending input.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return &errors.ValidationError{
			Field:      "name",
			Message:    "workflow name is required",
			Suggestion: "add a name matching the definition filename",
		}
	}
	if strings.ContainsAny(w.Name, `/\`) || strings.Contains(w.Name, "..") {
		return &errors.ValidationError{
			Field:      "name",
			Message:    fmt.Sprintf("workflow name %q must not contain path separators or '..'", w.Name),
			Suggestion: "use a plain name without '/', '\\' or '..'",
		}
	}

	if err := w.Trigger.validate(); err != nil {
		return err
	}

	if len(w.Steps) == 0 {
		return &errors.ValidationError{
			Field:      "steps",
			Message:    "workflow must have at least one step",
			Suggestion: "add at least one step to the definition",
		}
	}

	seen := make(map[string]bool, len(w.Steps))
	for i := range w.Steps {
		step := &w.Steps[i]
		if step.ID == "" {
			return &errors.ValidationError{
				Field:      fmt.Sprintf("steps[%d].id", i),
				Message:    "step id is required",
				Suggestion: "add an 'id' field to each step",
			}
		}
		if !stepIDPattern.MatchString(step.ID) {
			return &errors.ValidationError{
				Field:      fmt.Sprintf("steps[%d].id", i),
				Message:    fmt.Sprintf("step id %q contains invalid characters", step.ID),
				Suggestion: "use letters, digits and underscores only",
			}
		}
		if seen[step.ID] {
			return &errors.ValidationError{
				Field:      fmt.Sprintf("steps[%d].id", i),
				Message:    fmt.Sprintf("duplicate step id: %s", step.ID),
				Suggestion: "ensure each step has a unique id",
			}
		}
		seen[step.ID] = true

		if step.Type == "" {
			return &errors.ValidationError{
				Field:      fmt.Sprintf("steps[%d].type", i),
				Message:    "step type is required",
				Suggestion: "set the action type for this step",
			}
		}

		if step.When != nil {
			if err := step.When.validate(fmt.Sprintf("steps[%d].when", i)); err != nil {
				return err
			}
		}
	}

	return nil
}

func (t *Trigger) validate() error {
	switch t.Type {
	case TriggerManual, TriggerWebhook:
		return nil
	case TriggerSchedule:
		if t.Cron == "" {
			return &errors.ValidationError{
				Field:      "trigger.cron",
				Message:    "schedule trigger requires a cron expression",
				Suggestion: "add a five-field cron such as '0 9 * * *'",
			}
		}
		return nil
	case "":
		return &errors.ValidationError{
			Field:      "trigger.type",
			Message:    "trigger type is required",
			Suggestion: "set trigger.type to manual, schedule or webhook",
		}
	default:
		return &errors.ValidationError{
			Field:      "trigger.type",
			Message:    fmt.Sprintf("unknown trigger type: %s", t.Type),
			Suggestion: "use manual, schedule or webhook",
		}
	}
}

func (c *Condition) validate(path string) error {
	if c.Step == "" {
		return &errors.ValidationError{
			Field:      path + ".step",
			Message:    "condition requires a step id to inspect",
			Suggestion: "reference the id of an earlier step",
		}
	}
	switch c.MatchKind() {
	case MatchEquals, MatchContains:
	default:
		return &errors.ValidationError{
			Field:      path + ".match",
			Message:    fmt.Sprintf("unknown match mode: %s", c.Match),
			Suggestion: "use equals or contains",
		}
	}
	return nil
}

// Marshal renders the workflow back to YAML. Unset optional fields stay
// absent, which keeps Parse/Marshal round-trips stable.
func (w *Workflow) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	return data, nil
}
