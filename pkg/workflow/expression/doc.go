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

// Package expression expands step parameters against a run context.
//
// Parameter strings may interpolate {{ expression }} values and use
// {% if %} / {% elif %} / {% else %} / {% endif %} blocks. Expressions are
// evaluated with the expr-lang/expr library, so they support:
//
//   - Variable access: step_id.text, run_id, today
//   - Comparisons: ==, !=, <, >, <=, >=
//   - Boolean logic: and, or, not (also &&, ||, !)
//   - Membership: "value" in array
//   - Filter pipes: step_1.raw | fromjson, name | default('anon') | upper
//
// A parameter that is exactly one {{ expression }} keeps the evaluated
// value's type, so a filter like fromjson can hand a list or map to the
// next action. Everywhere else expression values are stringified into the
// surrounding text.
//
// Expansion never fails the caller: an expression error falls back to the
// plain rendering path, and a template that cannot render at all comes
// back unchanged. Undefined names stringify to "" and are nil when a
// single expression evaluates to them.
//
// Rendering is deterministic and side-effect free. Compiled expressions
// are cached per engine.
package expression
