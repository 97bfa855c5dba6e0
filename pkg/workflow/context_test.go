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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunContext(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	ctx := NewRunContext("20260315_093000_ab12", "daily-report", now, "/data")

	assert.Equal(t, "20260315_093000_ab12", ctx["run_id"])
	assert.Equal(t, "daily-report", ctx["workflow"])
	assert.Equal(t, "/data", ctx["base_dir"])
	assert.Equal(t, "2026-03-15T09:30:00Z", ctx["now"])
	assert.Equal(t, "2026-03-15", ctx["today"])
	assert.Equal(t, "2026-03-14", ctx["yesterday"])
	assert.Equal(t, "2026-03-16", ctx["tomorrow"])
	assert.Equal(t, "20260315", ctx["today_ymd"])
	assert.Equal(t, "20260315_093000", ctx["now_ymd_hms"])
}

func TestNewRunContext_MonthBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)
	ctx := NewRunContext("id", "w", now, "")

	assert.Equal(t, "2026-02-28", ctx["yesterday"])
	assert.Equal(t, "2026-03-02", ctx["tomorrow"])
}

func TestMergeSeed(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	ctx := NewRunContext("id", "w", now, "")

	MergeSeed(ctx, map[string]any{
		"params":             map[string]any{"env": "prod"},
		"today":              "1999-01-01",
		ParamWorkflowName:    "other",
		ParamMaxDepth:        9,
		ParamContinueOnError: true,
	})

	// seed values win, including over built-ins
	assert.Equal(t, map[string]any{"env": "prod"}, ctx["params"])
	assert.Equal(t, "1999-01-01", ctx["today"])

	// nesting-control keys never leak into the context
	assert.NotContains(t, ctx, ParamWorkflowName)
	assert.NotContains(t, ctx, ParamMaxDepth)
	assert.NotContains(t, ctx, ParamContinueOnError)
}

func TestMergeSeed_NilSeed(t *testing.T) {
	ctx := NewRunContext("id", "w", time.Now(), "")
	before := len(ctx)
	MergeSeed(ctx, nil)
	assert.Len(t, ctx, before)
}

func TestChainFrom(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		assert.Empty(t, ChainFrom(map[string]any{}))
	})

	t.Run("string slice", func(t *testing.T) {
		ctx := map[string]any{CallChainKey: []string{"a", "b"}}
		assert.Equal(t, []string{"a", "b"}, ChainFrom(ctx))
	})

	t.Run("any slice", func(t *testing.T) {
		ctx := map[string]any{CallChainKey: []any{"a", "b"}}
		assert.Equal(t, []string{"a", "b"}, ChainFrom(ctx))
	})
}

func TestIsControlParam(t *testing.T) {
	assert.True(t, IsControlParam(ParamWorkflowName))
	assert.True(t, IsControlParam(ParamMaxDepth))
	assert.True(t, IsControlParam(ParamContinueOnError))
	assert.False(t, IsControlParam("params"))
}

func TestNewRunID(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 45, 0, time.UTC)

	id := NewRunID(now)
	require.Regexp(t, `^20260315_093045_[0-9a-f]{4}$`, id)

	// suffixes keep same-second runs distinct
	seen := map[string]bool{id: true}
	collisions := 0
	for i := 0; i < 50; i++ {
		next := NewRunID(now)
		if seen[next] {
			collisions++
		}
		seen[next] = true
	}
	assert.Less(t, collisions, 5)
}
