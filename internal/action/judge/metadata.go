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

package judge

import (
	"strings"

	"github.com/tombee/reprise/pkg/action"
)

func judgeOutput() *action.ParameterSchema {
	return &action.ParameterSchema{
		Type: "object",
		Properties: map[string]*action.Property{
			"result":   {Type: "string", Description: "Judgement verdict", Enum: []any{"yes", "no"}},
			"reason":   {Type: "string", Description: "Why the verdict was reached"},
			"provider": {Type: "string", Description: "Always nonai for rule judges"},
		},
	}
}

// EqualsMetadata describes judge_equals.
func EqualsMetadata() *action.Metadata {
	return &action.Metadata{
		Type:        "judge_equals",
		Title:       "Equality judge",
		Category:    "judge",
		Description: "Compares a value for equality. Case-insensitive unless ignore_case is false.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"target":      {Type: "string", Description: "Value under judgement"},
				"value":       {Type: "string", Description: "Expected value"},
				"ignore_case": {Type: "boolean", Description: "Case-insensitive comparison", Default: true},
			},
			Required: []string{"target", "value"},
		},
		Output: judgeOutput(),
	}
}

// ContainsMetadata describes judge_contains.
func ContainsMetadata() *action.Metadata {
	return &action.Metadata{
		Type:        "judge_contains",
		Title:       "Substring judge",
		Category:    "judge",
		Description: "Checks whether a string contains a given substring.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"target":      {Type: "string", Description: "String under judgement"},
				"text":        {Type: "string", Description: "Substring to look for"},
				"ignore_case": {Type: "boolean", Description: "Case-insensitive search", Default: true},
			},
			Required: []string{"target", "text"},
		},
		Output: judgeOutput(),
	}
}

// RegexMetadata describes judge_regex.
func RegexMetadata() *action.Metadata {
	out := judgeOutput()
	out.Properties["matched"] = &action.Property{Type: "string", Description: "The matched substring, empty on no"}
	return &action.Metadata{
		Type:        "judge_regex",
		Title:       "Regex judge",
		Category:    "judge",
		Description: "Matches a string against a preset or custom regular expression. Presets: " + strings.Join(PresetNames(), ", ") + ".",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"target":  {Type: "string", Description: "String under judgement"},
				"preset":  {Type: "string", Description: "Preset pattern name", Enum: presetEnum()},
				"pattern": {Type: "string", Description: "Custom regular expression; ignored when preset is set"},
			},
			Required: []string{"target"},
		},
		Output: out,
	}
}

// NumericMetadata describes judge_numeric.
func NumericMetadata() *action.Metadata {
	return &action.Metadata{
		Type:        "judge_numeric",
		Title:       "Numeric judge",
		Category:    "judge",
		Description: "Compares a number against min, max and equal bounds.",
		Params: &action.ParameterSchema{
			Type: "object",
			Properties: map[string]*action.Property{
				"target": {Type: "string", Description: "Number under judgement, strings are converted"},
				"min":    {Type: "number", Description: "Inclusive lower bound"},
				"max":    {Type: "number", Description: "Inclusive upper bound"},
				"equal":  {Type: "number", Description: "Exact expected value"},
			},
			Required: []string{"target"},
		},
		Output: judgeOutput(),
	}
}

func presetEnum() []any {
	names := PresetNames()
	out := make([]any, len(names))
	for i, name := range names {
		out[i] = name
	}
	return out
}
