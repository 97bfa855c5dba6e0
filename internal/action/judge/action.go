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

// Package judge provides rule-based yes/no judgement actions.
//
// Every judge returns {result: "yes"|"no", reason, provider: "nonai"}
// so a following step's when-condition can branch on result without
// caring which judge produced it.
package judge

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tombee/reprise/pkg/errors"
)

// ProviderNonAI marks results produced by deterministic rules.
const ProviderNonAI = "nonai"

// Presets for judge_regex. Phone and zipcode follow the Japanese
// formats the engine's home deployments check against.
var regexPresets = map[string]struct {
	pattern     string
	description string
}{
	"email":   {`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`, "email address"},
	"url":     {`^https?://[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;=]+$`, "http or https URL"},
	"phone":   {`^(\+81|0)\d{1,4}[-\s]?\d{1,4}[-\s]?\d{3,4}$`, "phone number"},
	"zipcode": {`^\d{3}[-\s]?\d{4}$`, "postal code"},
	"number":  {`^-?\d+(\.\d+)?$`, "numeric value"},
}

// PresetNames returns the preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(regexPresets))
	for name := range regexPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EqualsAction implements judge_equals.
type EqualsAction struct{}

// ContainsAction implements judge_contains.
type ContainsAction struct{}

// RegexAction implements judge_regex.
type RegexAction struct{}

// NumericAction implements judge_numeric.
type NumericAction struct{}

func verdict(yes bool, reason string) map[string]any {
	result := "no"
	if yes {
		result = "yes"
	}
	return map[string]any{
		"result":   result,
		"reason":   reason,
		"provider": ProviderNonAI,
	}
}

// stringify converts any judged value to its string form. nil becomes
// the empty string so a missing upstream field reads as "".
func stringify(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func requireParam(params map[string]any, field string) (any, error) {
	value, ok := params[field]
	if !ok || value == nil {
		return nil, &errors.ValidationError{
			Field:      field,
			Message:    field + " is required",
			Suggestion: "Reference a prior step's output, e.g. {{ step_1.text }}",
		}
	}
	return value, nil
}

// ignoreCase defaults to true, matching the judge family's contract of
// forgiving comparisons.
func ignoreCase(params map[string]any) bool {
	if raw, ok := params["ignore_case"]; ok {
		if b, ok := raw.(bool); ok {
			return b
		}
	}
	return true
}

// Execute compares target and value for equality.
func (a *EqualsAction) Execute(_ context.Context, params, _ map[string]any) (map[string]any, error) {
	target, err := requireParam(params, "target")
	if err != nil {
		return nil, err
	}
	value, err := requireParam(params, "value")
	if err != nil {
		return nil, err
	}

	targetStr, valueStr := stringify(target), stringify(value)
	var match bool
	if ignoreCase(params) {
		match = strings.EqualFold(targetStr, valueStr)
	} else {
		match = targetStr == valueStr
	}

	if match {
		return verdict(true, fmt.Sprintf("'%s' equals '%s'", targetStr, valueStr)), nil
	}
	return verdict(false, fmt.Sprintf("'%s' does not equal '%s'", targetStr, valueStr)), nil
}

// Execute checks whether target contains text.
func (a *ContainsAction) Execute(_ context.Context, params, _ map[string]any) (map[string]any, error) {
	target, err := requireParam(params, "target")
	if err != nil {
		return nil, err
	}
	text, err := requireParam(params, "text")
	if err != nil {
		return nil, err
	}

	targetStr, textStr := stringify(target), stringify(text)
	var match bool
	if ignoreCase(params) {
		match = strings.Contains(strings.ToLower(targetStr), strings.ToLower(textStr))
	} else {
		match = strings.Contains(targetStr, textStr)
	}

	if match {
		return verdict(true, fmt.Sprintf("'%s' contains '%s'", targetStr, textStr)), nil
	}
	return verdict(false, fmt.Sprintf("'%s' does not contain '%s'", targetStr, textStr)), nil
}

// Execute matches target against a preset or custom pattern. The
// result carries the matched substring under "matched".
func (a *RegexAction) Execute(_ context.Context, params, _ map[string]any) (map[string]any, error) {
	target, err := requireParam(params, "target")
	if err != nil {
		return nil, err
	}

	preset, _ := params["preset"].(string)
	pattern, _ := params["pattern"].(string)
	description := "custom pattern"

	switch {
	case preset != "":
		entry, ok := regexPresets[preset]
		if !ok {
			return nil, &errors.ValidationError{
				Field:      "preset",
				Message:    fmt.Sprintf("unknown preset %q", preset),
				Suggestion: "Available presets: " + strings.Join(PresetNames(), ", "),
			}
		}
		pattern = entry.pattern
		description = entry.description
	case pattern == "":
		return nil, &errors.ValidationError{
			Field:      "pattern",
			Message:    "preset or pattern is required",
			Suggestion: "Available presets: " + strings.Join(PresetNames(), ", "),
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:   "pattern",
			Message: fmt.Sprintf("invalid regex pattern: %v", err),
		}
	}

	targetStr := stringify(target)
	matched := re.FindString(targetStr)

	var out map[string]any
	if re.MatchString(targetStr) {
		out = verdict(true, fmt.Sprintf("'%s' matches %s: '%s'", targetStr, description, matched))
	} else {
		out = verdict(false, fmt.Sprintf("'%s' does not match %s", targetStr, description))
	}
	out["matched"] = matched
	return out, nil
}

func toNumber(value any, field string) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &errors.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("cannot convert %q to a number", v),
			}
		}
		return parsed, nil
	default:
		return 0, &errors.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be numeric, got %T", field, value),
		}
	}
}

// Execute compares target against min, max and equal bounds. At least
// one bound is required; all supplied bounds must hold for a yes.
func (a *NumericAction) Execute(_ context.Context, params, _ map[string]any) (map[string]any, error) {
	target, err := requireParam(params, "target")
	if err != nil {
		return nil, err
	}

	minRaw, hasMin := params["min"]
	maxRaw, hasMax := params["max"]
	equalRaw, hasEqual := params["equal"]
	if !hasMin && !hasMax && !hasEqual {
		return nil, &errors.ValidationError{
			Field:      "min",
			Message:    "at least one of min, max or equal is required",
			Suggestion: "Add min and/or max for a range check, or equal for equality",
		}
	}

	targetNum, err := toNumber(target, "target")
	if err != nil {
		return nil, err
	}

	ok := true
	var clauses []string

	if hasEqual {
		equalNum, err := toNumber(equalRaw, "equal")
		if err != nil {
			return nil, err
		}
		if targetNum == equalNum {
			clauses = append(clauses, fmt.Sprintf("equals %v", equalNum))
		} else {
			ok = false
			clauses = append(clauses, fmt.Sprintf("does not equal %v", equalNum))
		}
	}
	if hasMin {
		minNum, err := toNumber(minRaw, "min")
		if err != nil {
			return nil, err
		}
		if targetNum >= minNum {
			clauses = append(clauses, fmt.Sprintf("is at least %v", minNum))
		} else {
			ok = false
			clauses = append(clauses, fmt.Sprintf("is below %v", minNum))
		}
	}
	if hasMax {
		maxNum, err := toNumber(maxRaw, "max")
		if err != nil {
			return nil, err
		}
		if targetNum <= maxNum {
			clauses = append(clauses, fmt.Sprintf("is at most %v", maxNum))
		} else {
			ok = false
			clauses = append(clauses, fmt.Sprintf("exceeds %v", maxNum))
		}
	}

	reason := fmt.Sprintf("%v %s", targetNum, strings.Join(clauses, ", "))
	return verdict(ok, reason), nil
}
