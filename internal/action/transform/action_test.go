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

package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJQ_SingleResult(t *testing.T) {
	result, err := NewJQ().Execute(context.Background(), map[string]any{
		"query": ".items | length",
		"input": map[string]any{"items": []any{"a", "b", "c"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result["result"])
	assert.Equal(t, "3", result["text"])
}

func TestJQ_MultipleResultsBecomeArray(t *testing.T) {
	result, err := NewJQ().Execute(context.Background(), map[string]any{
		"query": ".items[]",
		"input": map[string]any{"items": []any{"a", "b"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, result["result"])
}

func TestJQ_NoResultIsNil(t *testing.T) {
	result, err := NewJQ().Execute(context.Background(), map[string]any{
		"query": ".items[] | select(. == \"z\")",
		"input": map[string]any{"items": []any{"a"}},
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, result["result"])
}

func TestJQ_DefaultsToRunContext(t *testing.T) {
	result, err := NewJQ().Execute(context.Background(), map[string]any{
		"query": ".workflow",
	}, map[string]any{"workflow": "daily_report"})
	require.NoError(t, err)
	assert.Equal(t, "daily_report", result["result"])
}

func TestJQ_ParseError(t *testing.T) {
	_, err := NewJQ().Execute(context.Background(), map[string]any{
		"query": ".[",
		"input": map[string]any{},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jq parse error")
}

func TestJQ_QueryRequired(t *testing.T) {
	_, err := NewJQ().Execute(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestJQ_InputSizeCap(t *testing.T) {
	a := NewJQ()
	a.maxInputSize = 16

	_, err := a.Execute(context.Background(), map[string]any{
		"query": ".",
		"input": map[string]any{"data": "this will not fit in sixteen bytes"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(""))
	assert.NoError(t, Validate(".foo.bar"))
	assert.Error(t, Validate(".["))
}
