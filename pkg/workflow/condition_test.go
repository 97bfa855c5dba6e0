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
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestEvaluateCondition_StringMatching(t *testing.T) {
	context := map[string]any{
		"fetch": map[string]any{
			"text":   "  Status: OK  ",
			"status": "success",
		},
	}

	tests := []struct {
		name string
		cond *Condition
		want bool
	}{
		{
			name: "equals with default trim and fold",
			cond: &Condition{Step: "fetch", Field: "status", Equals: "SUCCESS"},
			want: true,
		},
		{
			name: "equals respects case when folding disabled",
			cond: &Condition{Step: "fetch", Field: "status", Equals: "SUCCESS", CaseInsensitive: boolPtr(false)},
			want: false,
		},
		{
			name: "trim disabled keeps padding",
			cond: &Condition{Step: "fetch", Field: "text", Equals: "status: ok", Trim: boolPtr(false)},
			want: false,
		},
		{
			name: "contains match",
			cond: &Condition{Step: "fetch", Field: "text", Equals: "status", Match: MatchContains},
			want: true,
		},
		{
			name: "contains miss",
			cond: &Condition{Step: "fetch", Field: "text", Equals: "absent", Match: MatchContains},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := EvaluateCondition(tt.cond, context)
			assert.Equal(t, tt.want, got)
			// a comparison that ran carries no reason, whatever its outcome
			assert.Empty(t, reason)
		})
	}
}

func TestEvaluateCondition_NonStringValues(t *testing.T) {
	context := map[string]any{
		"fetch": map[string]any{
			"status": 200,
			"ratio":  1.0,
			"ok":     true,
			"items":  []any{1, 2},
		},
	}

	tests := []struct {
		name string
		cond *Condition
		want bool
	}{
		{
			name: "int equals int",
			cond: &Condition{Step: "fetch", Field: "status", Equals: 200},
			want: true,
		},
		{
			name: "int equals whole float",
			cond: &Condition{Step: "fetch", Field: "ratio", Equals: 1},
			want: true,
		},
		{
			name: "bool equals bool",
			cond: &Condition{Step: "fetch", Field: "ok", Equals: true},
			want: true,
		},
		{
			name: "list deep equality",
			cond: &Condition{Step: "fetch", Field: "items", Equals: []any{1, 2}},
			want: true,
		},
		{
			name: "number mismatch",
			cond: &Condition{Step: "fetch", Field: "status", Equals: 404},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := EvaluateCondition(tt.cond, context)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCondition_MissingData(t *testing.T) {
	context := map[string]any{
		"fetch": map[string]any{"text": "ok"},
	}

	t.Run("referenced step never ran", func(t *testing.T) {
		ok, reason := EvaluateCondition(&Condition{Step: "ghost", Equals: "x"}, context)
		assert.False(t, ok)
		assert.Equal(t, "condition_step_missing:ghost", reason)
	})

	t.Run("referenced field absent", func(t *testing.T) {
		ok, reason := EvaluateCondition(&Condition{Step: "fetch", Field: "status", Equals: "x"}, context)
		assert.False(t, ok)
		assert.Equal(t, "condition_field_missing:status", reason)
	})

	t.Run("default field is text", func(t *testing.T) {
		ok, reason := EvaluateCondition(&Condition{Step: "fetch", Equals: "ok"}, context)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})
}
