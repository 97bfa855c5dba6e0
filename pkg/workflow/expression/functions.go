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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// filterFuncs are the template filters, exposed to expr both at compile
// time (environment) and at run time (merged into the context). All use
// the variadic form so pipes of any arity compile.
var filterFuncs = map[string]any{
	"default":     defaultFilter,
	"lower":       lowerFilter,
	"upper":       upperFilter,
	"title":       titleFilter,
	"trim":        trimFilter,
	"replace":     replaceFilter,
	"length":      lengthFilter,
	"first":       firstFilter,
	"last":        lastFilter,
	"join":        joinFilter,
	"int":         intFilter,
	"float":       floatFilter,
	"string":      stringFilter,
	"round":       roundFilter,
	"abs":         absFilter,
	"tojson_utf8": tojsonUTF8Filter,
	"fromjson":    fromjsonFilter,
	"has":         hasFilter,
	"includes":    hasFilter,
}

var titleCaser = cases.Title(language.Und)

// defaultFilter replaces undefined or empty values.
// Usage: value | default('fallback'); a trailing true also replaces
// falsy values (0, false, empty collections).
func defaultFilter(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 3 {
		return nil, fmt.Errorf("default requires 1 to 3 arguments, got %d", len(args))
	}
	value := args[0]
	var fallback any = ""
	if len(args) >= 2 {
		fallback = args[1]
	}
	strict := false
	if len(args) == 3 {
		b, ok := args[2].(bool)
		if !ok {
			return nil, fmt.Errorf("default: third argument must be a boolean")
		}
		strict = b
	}

	if value == nil {
		return fallback, nil
	}
	if s, ok := value.(string); ok && s == "" {
		return fallback, nil
	}
	if strict && !Truthy(value) {
		return fallback, nil
	}
	return value, nil
}

func lowerFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("lower requires exactly 1 argument, got %d", len(args))
	}
	return strings.ToLower(Stringify(args[0])), nil
}

func upperFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("upper requires exactly 1 argument, got %d", len(args))
	}
	return strings.ToUpper(Stringify(args[0])), nil
}

func titleFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("title requires exactly 1 argument, got %d", len(args))
	}
	return titleCaser.String(Stringify(args[0])), nil
}

func trimFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("trim requires exactly 1 argument, got %d", len(args))
	}
	return strings.TrimSpace(Stringify(args[0])), nil
}

func replaceFilter(args ...any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("replace requires exactly 3 arguments, got %d", len(args))
	}
	return strings.ReplaceAll(Stringify(args[0]), Stringify(args[1]), Stringify(args[2])), nil
}

// lengthFilter returns the length of a string, slice or map.
func lengthFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("length requires exactly 1 argument, got %d", len(args))
	}
	if args[0] == nil {
		return 0, nil
	}
	v := reflect.ValueOf(args[0])
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len(), nil
	case reflect.String:
		// count runes, not bytes, so multibyte text measures naturally
		return len([]rune(v.String())), nil
	default:
		return nil, fmt.Errorf("length: unsupported type %T", args[0])
	}
}

func firstFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("first requires exactly 1 argument, got %d", len(args))
	}
	return edgeElement(args[0], false)
}

func lastFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("last requires exactly 1 argument, got %d", len(args))
	}
	return edgeElement(args[0], true)
}

// edgeElement returns the first or last element of a slice or string.
// Empty input yields nil, which stringifies to "".
func edgeElement(value any, last bool) (any, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok {
		runes := []rune(s)
		if len(runes) == 0 {
			return nil, nil
		}
		if last {
			return string(runes[len(runes)-1]), nil
		}
		return string(runes[0]), nil
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return nil, nil
		}
		if last {
			return v.Index(v.Len() - 1).Interface(), nil
		}
		return v.Index(0).Interface(), nil
	default:
		return nil, fmt.Errorf("first/last: unsupported type %T", value)
	}
}

// joinFilter concatenates sequence elements, stringifying each one.
// Usage: items | join(', '); the separator defaults to "".
func joinFilter(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("join requires 1 or 2 arguments, got %d", len(args))
	}
	sep := ""
	if len(args) == 2 {
		sep = Stringify(args[1])
	}
	if args[0] == nil {
		return "", nil
	}
	v := reflect.ValueOf(args[0])
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, v.Len())
		for i := 0; i < v.Len(); i++ {
			parts[i] = Stringify(v.Index(i).Interface())
		}
		return strings.Join(parts, sep), nil
	default:
		return nil, fmt.Errorf("join: unsupported type %T", args[0])
	}
}

// intFilter coerces to int, falling back to a default (0) on failure the
// way template authors expect from loosely typed step output.
func intFilter(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("int requires 1 or 2 arguments, got %d", len(args))
	}
	fallback := 0
	if len(args) == 2 {
		f, ok := toInt(args[1])
		if !ok {
			return nil, fmt.Errorf("int: default must be a number")
		}
		fallback = f
	}
	if n, ok := toInt(args[0]); ok {
		return n, nil
	}
	return fallback, nil
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

func floatFilter(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("float requires 1 or 2 arguments, got %d", len(args))
	}
	fallback := 0.0
	if len(args) == 2 {
		f, ok := toFloat(args[1])
		if !ok {
			return nil, fmt.Errorf("float: default must be a number")
		}
		fallback = f
	}
	if f, ok := toFloat(args[0]); ok {
		return f, nil
	}
	return fallback, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func stringFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("string requires exactly 1 argument, got %d", len(args))
	}
	return Stringify(args[0]), nil
}

// roundFilter rounds to a precision (default 0). The result is always a
// float so chained arithmetic stays predictable.
func roundFilter(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("round requires 1 or 2 arguments, got %d", len(args))
	}
	f, ok := toFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("round: unsupported type %T", args[0])
	}
	precision := 0
	if len(args) == 2 {
		p, ok := toInt(args[1])
		if !ok {
			return nil, fmt.Errorf("round: precision must be a number")
		}
		precision = p
	}
	shift := math.Pow(10, float64(precision))
	return math.Round(f*shift) / shift, nil
}

func absFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("abs requires exactly 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case int:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case int64:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case float64:
		return math.Abs(v), nil
	case float32:
		return math.Abs(float64(v)), nil
	default:
		return nil, fmt.Errorf("abs: unsupported type %T", args[0])
	}
}

// tojsonUTF8Filter emits JSON with non-ASCII characters verbatim, never
// as \uXXXX escapes. An optional numeric argument selects pretty
// printing with that indent width.
func tojsonUTF8Filter(args ...any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("tojson_utf8 requires 1 or 2 arguments, got %d", len(args))
	}

	indent := 0
	if len(args) == 2 && args[1] != nil {
		if n, ok := toInt(args[1]); ok {
			indent = n
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(jsonSafe(args[0])); err != nil {
		return nil, fmt.Errorf("tojson_utf8: %w", err)
	}
	// Encode appends a newline
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// jsonSafe rewrites values json.Marshal cannot handle into their string
// form, so a stray typed value deep in a result never fails the render.
func jsonSafe(value any) any {
	switch v := value.(type) {
	case nil, bool, string, int, int32, int64, uint64, float32, float64:
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			out[key] = jsonSafe(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			out[fmt.Sprintf("%v", key)] = jsonSafe(elem)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = jsonSafe(elem)
		}
		return out
	case []string:
		return v
	default:
		if _, err := json.Marshal(v); err == nil {
			return v
		}
		return fmt.Sprintf("%v", v)
	}
}

// fromjsonFilter parses a string into a value, tolerating the prose and
// code fences that wrap AI-generated JSON. See fromjson.go.
func fromjsonFilter(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("fromjson requires exactly 1 argument, got %d", len(args))
	}
	return FromJSON(args[0])
}

// hasFilter checks membership: element in slice, key in map, substring
// in string. Registered as both has and includes.
func hasFilter(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("has requires exactly 2 arguments, got %d", len(args))
	}

	collection := args[0]
	target := args[1]
	if collection == nil {
		return false, nil
	}

	v := reflect.ValueOf(collection)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if reflect.DeepEqual(v.Index(i).Interface(), target) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		if target == nil {
			return false, nil
		}
		key := reflect.ValueOf(target)
		if !key.Type().AssignableTo(v.Type().Key()) {
			return false, nil
		}
		return v.MapIndex(key).IsValid(), nil
	case reflect.String:
		substr, ok := target.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(v.String(), substr), nil
	default:
		return false, nil
	}
}
