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

package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFilter(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want any
	}{
		{name: "nil replaced", args: []any{nil, "fallback"}, want: "fallback"},
		{name: "empty string replaced", args: []any{"", "fallback"}, want: "fallback"},
		{name: "value kept", args: []any{"set", "fallback"}, want: "set"},
		{name: "zero kept without boolean flag", args: []any{0, "fallback"}, want: 0},
		{name: "zero replaced with boolean flag", args: []any{0, "fallback", true}, want: "fallback"},
		{name: "false replaced with boolean flag", args: []any{false, "fallback", true}, want: "fallback"},
		{name: "nil without fallback yields empty", args: []any{nil}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := defaultFilter(tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringFilters(t *testing.T) {
	tests := []struct {
		name string
		fn   func(...any) (any, error)
		args []any
		want any
	}{
		{name: "lower", fn: lowerFilter, args: []any{"HeLLo"}, want: "hello"},
		{name: "lower stringifies numbers", fn: lowerFilter, args: []any{42}, want: "42"},
		{name: "upper", fn: upperFilter, args: []any{"hello"}, want: "HELLO"},
		{name: "title", fn: titleFilter, args: []any{"hello world"}, want: "Hello World"},
		{name: "title lowers the rest", fn: titleFilter, args: []any{"HELLO"}, want: "Hello"},
		{name: "trim", fn: trimFilter, args: []any{"  pad  "}, want: "pad"},
		{name: "replace", fn: replaceFilter, args: []any{"a-b-c", "-", "."}, want: "a.b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLengthFilter(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    any
		wantErr bool
	}{
		{name: "string counts runes", value: "héllo", want: 5},
		{name: "multibyte string", value: "日本語", want: 3},
		{name: "slice", value: []any{1, 2, 3}, want: 3},
		{name: "map", value: map[string]any{"a": 1}, want: 1},
		{name: "nil is zero", value: nil, want: 0},
		{name: "number errors", value: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lengthFilter(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstLastFilters(t *testing.T) {
	t.Run("first of slice", func(t *testing.T) {
		got, err := firstFilter([]any{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, "a", got)
	})
	t.Run("last of slice", func(t *testing.T) {
		got, err := lastFilter([]any{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, "b", got)
	})
	t.Run("first of multibyte string", func(t *testing.T) {
		got, err := firstFilter("über")
		require.NoError(t, err)
		assert.Equal(t, "ü", got)
	})
	t.Run("empty slice yields nil", func(t *testing.T) {
		got, err := firstFilter([]any{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})
	t.Run("empty string yields nil", func(t *testing.T) {
		got, err := lastFilter("")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestJoinFilter(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want string
	}{
		{name: "strings with separator", args: []any{[]any{"a", "b"}, ", "}, want: "a, b"},
		{name: "default empty separator", args: []any{[]any{"a", "b"}}, want: "ab"},
		{name: "numbers stringified", args: []any{[]any{1, 2.5}, "-"}, want: "1-2.5"},
		{name: "typed string slice", args: []any{[]string{"x", "y"}, "/"}, want: "x/y"},
		{name: "nil joins to empty", args: []any{nil, ","}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := joinFilter(tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumericFilters(t *testing.T) {
	t.Run("int coercions", func(t *testing.T) {
		tests := []struct {
			name string
			args []any
			want any
		}{
			{name: "int passthrough", args: []any{7}, want: 7},
			{name: "float truncates", args: []any{3.9}, want: 3},
			{name: "numeric string", args: []any{"42"}, want: 42},
			{name: "float string truncates", args: []any{"3.9"}, want: 3},
			{name: "bool", args: []any{true}, want: 1},
			{name: "garbage yields zero", args: []any{"abc"}, want: 0},
			{name: "garbage with default", args: []any{"abc", 9}, want: 9},
			{name: "nil yields zero", args: []any{nil}, want: 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := intFilter(tt.args...)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	})

	t.Run("float coercions", func(t *testing.T) {
		got, err := floatFilter("2.5")
		require.NoError(t, err)
		assert.Equal(t, 2.5, got)

		got, err = floatFilter(3)
		require.NoError(t, err)
		assert.Equal(t, 3.0, got)

		got, err = floatFilter("abc")
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("round", func(t *testing.T) {
		got, err := roundFilter(3.14159, 2)
		require.NoError(t, err)
		assert.Equal(t, 3.14, got)

		got, err = roundFilter(2.5)
		require.NoError(t, err)
		assert.Equal(t, 3.0, got)
	})

	t.Run("abs", func(t *testing.T) {
		got, err := absFilter(-7)
		require.NoError(t, err)
		assert.Equal(t, 7, got)

		got, err = absFilter(-1.5)
		require.NoError(t, err)
		assert.Equal(t, 1.5, got)

		_, err = absFilter("x")
		assert.Error(t, err)
	})
}

func TestStringFilter(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "int", value: 3, want: "3"},
		{name: "bool", value: true, want: "true"},
		{name: "list repr", value: []any{1, "a"}, want: "[1, 'a']"},
		{name: "nil", value: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stringFilter(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTojsonUTF8Filter(t *testing.T) {
	t.Run("non-ascii stays verbatim", func(t *testing.T) {
		got, err := tojsonUTF8Filter(map[string]any{"msg": "こんにちは"})
		require.NoError(t, err)
		assert.Equal(t, `{"msg":"こんにちは"}`, got)
	})

	t.Run("html characters not escaped", func(t *testing.T) {
		got, err := tojsonUTF8Filter("<a>&</a>")
		require.NoError(t, err)
		assert.Equal(t, `"<a>&</a>"`, got)
	})

	t.Run("indent", func(t *testing.T) {
		got, err := tojsonUTF8Filter(map[string]any{"a": 1}, 2)
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"a\": 1\n}", got)
	})

	t.Run("list", func(t *testing.T) {
		got, err := tojsonUTF8Filter([]any{1, "x"})
		require.NoError(t, err)
		assert.Equal(t, `[1,"x"]`, got)
	})
}

func TestHasFilter(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want bool
	}{
		{name: "element in slice", args: []any{[]any{"a", "b"}, "a"}, want: true},
		{name: "element not in slice", args: []any{[]any{"a", "b"}, "z"}, want: false},
		{name: "key in map", args: []any{map[string]any{"k": 1}, "k"}, want: true},
		{name: "key not in map", args: []any{map[string]any{"k": 1}, "x"}, want: false},
		{name: "substring", args: []any{"workflow", "flow"}, want: true},
		{name: "nil collection", args: []any{nil, "a"}, want: false},
		{name: "mismatched map key type", args: []any{map[string]any{"k": 1}, 5}, want: false},
		{name: "number in slice", args: []any{[]any{1, 2}, 2}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hasFilter(tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
