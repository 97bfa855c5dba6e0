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

package workflow

import (
	"reflect"
	"strings"
)

// Skip reasons recorded when a condition does not hold. The missing
// variants carry the offending name after the colon.
const (
	// SkipConditionNotMet is the generic reason for a false comparison.
	SkipConditionNotMet = "condition_not_met"

	skipStepMissingPrefix  = "condition_step_missing:"
	skipFieldMissingPrefix = "condition_field_missing:"
)

// EvaluateCondition checks a step condition against the run context.
//
// It returns (matched, reason). The reason is empty when the comparison
// actually ran; the missing outcomes report why no comparison was
// possible. Evaluation is pure: calling it twice against the same context
// yields the same outcome.
func EvaluateCondition(c *Condition, context map[string]any) (bool, string) {
	entry, ok := context[c.Step]
	if !ok || entry == nil {
		return false, skipStepMissingPrefix + c.Step
	}

	field := c.TargetField()
	var actual any
	if m, isMap := entry.(map[string]any); isMap {
		actual = m[field]
	}
	if actual == nil {
		return false, skipFieldMissingPrefix + field
	}

	expected := c.Equals
	actualStr, actualIsStr := actual.(string)
	expectedStr, expectedIsStr := expected.(string)
	if actualIsStr && expectedIsStr {
		left := normalizeOperand(actualStr, c.TrimEnabled(), c.IgnoresCase())
		right := normalizeOperand(expectedStr, c.TrimEnabled(), c.IgnoresCase())
		if c.MatchKind() == MatchContains {
			return strings.Contains(left, right), ""
		}
		return left == right, ""
	}

	return looseEqual(actual, expected), ""
}

func normalizeOperand(value string, trim, caseInsensitive bool) string {
	if trim {
		value = strings.TrimSpace(value)
	}
	if caseInsensitive {
		value = strings.ToLower(value)
	}
	return value
}

// looseEqual compares two values the way YAML- and JSON-sourced data mix
// in practice: numbers compare by value regardless of concrete type, so
// an int 1 from a definition equals a float64 1 from a decoded result.
func looseEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
