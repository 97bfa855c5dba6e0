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
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine renders parameter values against a run context. It caches
// compiled expressions, so one engine should be shared across runs.
type Engine struct {
	cache  map[string]*vm.Program
	mu     sync.RWMutex
	logger *slog.Logger
}

// New creates an engine that logs nowhere. Template problems surface as
// fallback renderings, not as errors.
func New() *Engine {
	return NewWithLogger(slog.New(slog.DiscardHandler))
}

// NewWithLogger creates an engine that reports expression failures at
// warn level before falling back.
func NewWithLogger(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		cache:  make(map[string]*vm.Program),
		logger: logger,
	}
}

// Overridden expr builtins. The filter set mirrors the template filters
// workflow authors already use, and several of those names collide with
// expr's own builtins with slightly different behavior (int("x") must
// yield 0, first("abc") must yield "a"). The env functions win.
var overriddenBuiltins = []string{
	"trim", "upper", "lower", "replace", "join", "first", "last",
	"int", "float", "string", "round", "abs",
}

// Evaluate runs a single expression against the context and returns the
// typed result. Undefined names evaluate to nil.
func (e *Engine) Evaluate(expression string, ctx map[string]any) (any, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	evalCtx := make(map[string]any, len(ctx)+len(filterFuncs))
	for k, v := range ctx {
		evalCtx[k] = v
	}
	for name, fn := range filterFuncs {
		evalCtx[name] = fn
	}

	return expr.Run(program, evalCtx)
}

// EvaluateBool runs an expression and interprets the result with
// template truthiness: nil, false, zero, "" and empty collections are
// false, everything else true.
func (e *Engine) EvaluateBool(expression string, ctx map[string]any) (bool, error) {
	value, err := e.Evaluate(expression, ctx)
	if err != nil {
		return false, err
	}
	return Truthy(value), nil
}

// compile normalizes filter pipes, compiles and caches the program.
func (e *Engine) compile(expression string) (*vm.Program, error) {
	normalized := normalizePipes(expression)

	e.mu.RLock()
	if prog, ok := e.cache[normalized]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	env := make(map[string]any, len(filterFuncs))
	for name, fn := range filterFuncs {
		env[name] = fn
	}

	opts := []expr.Option{
		expr.Env(env),
		// the run context is supplied at evaluation time
		expr.AllowUndefinedVariables(),
	}
	for _, name := range overriddenBuiltins {
		opts = append(opts, expr.DisableBuiltin(name))
	}

	prog, err := expr.Compile(normalized, opts...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[normalized] = prog
	e.mu.Unlock()

	return prog, nil
}

// ClearCache drops all cached programs. Mainly useful for tests.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	e.cache = make(map[string]*vm.Program)
	e.mu.Unlock()
}

// CacheSize returns the number of cached programs.
func (e *Engine) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// normalizePipes turns bare filter names after a pipe into calls, so the
// template spelling "value | trim | lower" compiles as expr's native
// pipe operator ("value | trim() | lower()"). Segments that are already
// calls or arbitrary expressions pass through untouched. The split
// ignores pipes inside string literals, parentheses and the logical ||
// operator.
func normalizePipes(expression string) string {
	parts := splitTopLevelPipes(expression)
	if len(parts) < 2 {
		return expression
	}
	for i := 1; i < len(parts); i++ {
		segment := strings.TrimSpace(parts[i])
		if isIdentifier(segment) {
			parts[i] = segment + "()"
		} else {
			parts[i] = segment
		}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, " | ")
}

// splitTopLevelPipes splits on single | characters that sit outside
// strings, brackets and ||.
func splitTopLevelPipes(s string) []string {
	var (
		parts   []string
		start   int
		depth   int
		quote   rune // active string quote, or 0
		escaped bool
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == quote:
				quote = 0
			}
			continue
		}

		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '|':
			if i+1 < len(runes) && runes[i+1] == '|' {
				i++ // logical or
				continue
			}
			if depth == 0 {
				parts = append(parts, string(runes[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, string(runes[start:]))
	return parts
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, ch := range s {
		if ch == '_' || unicode.IsLetter(ch) {
			continue
		}
		if i > 0 && unicode.IsDigit(ch) {
			continue
		}
		return false
	}
	return true
}

// Truthy reports template truthiness: nil, false, numeric zero, empty
// strings and empty collections are false.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case uint64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case map[any]any:
		return len(v) > 0
	default:
		return true
	}
}
