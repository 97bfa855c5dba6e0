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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

var fencedBlockPattern = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// FromJSON parses model output into structured data. AI responses wrap
// JSON in code fences, prose, or Python-style literals; this walks a
// series of progressively looser strategies before giving up:
//
//  1. unwrap a ```json fenced block if one is present
//  2. parse the candidate as strict JSON
//  3. extract the first balanced {...} or [...] region and parse that
//  4. parse the extracted region as a Python-style literal
//     (single quotes, True/False/None)
//
// Integral numbers decode as int, everything else as float64, so a
// value round-trips cleanly through tojson_utf8.
func FromJSON(value any) (any, error) {
	var text string
	switch v := value.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	case nil:
		return nil, errors.New("fromjson: input is empty")
	default:
		return nil, fmt.Errorf("fromjson: expected a string, got %T", value)
	}

	candidate := stripFence(text)
	if candidate == "" {
		return nil, errors.New("fromjson: no JSON content found")
	}

	if parsed, err := parseStrictJSON(candidate); err == nil {
		return parsed, nil
	}

	extracted := extractBalanced(candidate)
	if extracted == "" {
		return nil, errors.New("fromjson: unable to parse JSON from input")
	}
	if parsed, err := parseStrictJSON(extracted); err == nil {
		return parsed, nil
	}
	if parsed, err := parseLooseLiteral(extracted); err == nil {
		return parsed, nil
	}
	return nil, errors.New("fromjson: unable to parse JSON from input")
}

// stripFence returns the body of the first fenced code block, or the
// whole input trimmed when no fence is present.
func stripFence(s string) string {
	if m := fencedBlockPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(s)
}

// parseStrictJSON decodes exactly one JSON value with no trailing
// content, normalizing numbers as it goes.
func parseStrictJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing content after JSON value")
	}
	return normalizeNumbers(v), nil
}

// normalizeNumbers converts json.Number leaves to int when integral and
// float64 otherwise.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return int(n)
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for key, elem := range t {
			t[key] = normalizeNumbers(elem)
		}
		return t
	case []any:
		for i, elem := range t {
			t[i] = normalizeNumbers(elem)
		}
		return t
	default:
		return v
	}
}

// extractBalanced returns the first balanced {...} or [...] region,
// whichever opens earlier, skipping brackets inside double-quoted
// strings. Returns "" when no balanced region exists.
func extractBalanced(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}

	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return ""
			}
			open := stack[len(stack)-1]
			if (c == '}' && open != '{') || (c == ']' && open != '[') {
				return ""
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// parseLooseLiteral parses a Python-repr-style literal: single- or
// double-quoted strings, True/False/None, numbers, lists and
// string-keyed dicts. Tuples and sets are rejected.
func parseLooseLiteral(s string) (any, error) {
	p := &literalParser{input: []rune(s)}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, errors.New("trailing content after literal")
	}
	return v, nil
}

type literalParser struct {
	input []rune
	pos   int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *literalParser) peek() (rune, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *literalParser) parseValue() (any, error) {
	p.skipSpace()
	c, ok := p.peek()
	if !ok {
		return nil, errors.New("unexpected end of input")
	}
	switch {
	case c == '\'' || c == '"':
		return p.parseString()
	case c == '{':
		return p.parseDict()
	case c == '[':
		return p.parseList()
	case c == '(':
		return nil, errors.New("tuples are not supported")
	case c == '-' || c == '+' || unicode.IsDigit(c):
		return p.parseNumber()
	default:
		return p.parseName()
	}
}

func (p *literalParser) parseString() (string, error) {
	quote := p.input[p.pos]
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case quote:
			p.pos++
			return sb.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return "", errors.New("unterminated escape sequence")
			}
			esc := p.input[p.pos]
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case 'b':
				sb.WriteRune('\b')
			case 'f':
				sb.WriteRune('\f')
			case '\\', '\'', '"', '/':
				sb.WriteRune(esc)
			case 'u':
				r, err := p.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
			default:
				// Python keeps unknown escapes verbatim
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
			p.pos++
		default:
			sb.WriteRune(c)
			p.pos++
		}
	}
	return "", errors.New("unterminated string literal")
}

// parseUnicodeEscape consumes the four hex digits of a \uXXXX escape,
// joining surrogate pairs when a low surrogate follows.
func (p *literalParser) parseUnicodeEscape() (rune, error) {
	if p.pos+4 >= len(p.input) {
		return 0, errors.New("truncated unicode escape")
	}
	digits := string(p.input[p.pos+1 : p.pos+5])
	n, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, errors.New("invalid unicode escape")
	}
	p.pos += 4
	r := rune(n)
	if utf16.IsSurrogate(r) && p.pos+6 < len(p.input) &&
		p.input[p.pos+1] == '\\' && p.input[p.pos+2] == 'u' {
		lowDigits := string(p.input[p.pos+3 : p.pos+7])
		if low, err := strconv.ParseUint(lowDigits, 16, 32); err == nil {
			if combined := utf16.DecodeRune(r, rune(low)); combined != unicode.ReplacementChar {
				p.pos += 6
				return combined, nil
			}
		}
	}
	return r, nil
}

func (p *literalParser) parseNumber() (any, error) {
	start := p.pos
	if c, ok := p.peek(); ok && (c == '-' || c == '+') {
		p.pos++
	}
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if unicode.IsDigit(c) || c == '.' || c == 'e' || c == 'E' ||
			((c == '-' || c == '+') && (p.input[p.pos-1] == 'e' || p.input[p.pos-1] == 'E')) {
			p.pos++
			continue
		}
		break
	}
	text := string(p.input[start:p.pos])
	if n, err := strconv.Atoi(text); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("invalid number: %q", text)
}

func (p *literalParser) parseName() (any, error) {
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsLetter(p.input[p.pos]) || unicode.IsDigit(p.input[p.pos])) {
		p.pos++
	}
	switch string(p.input[start:p.pos]) {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected token at offset %d", start)
	}
}

func (p *literalParser) parseList() (any, error) {
	p.pos++ // consume '['
	items := []any{}
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, errors.New("unterminated list")
		}
		if c == ']' {
			p.pos++
			return items, nil
		}
		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipSpace()
		c, ok = p.peek()
		if !ok {
			return nil, errors.New("unterminated list")
		}
		switch c {
		case ',':
			p.pos++
		case ']':
		default:
			return nil, fmt.Errorf("expected ',' or ']', got %q", c)
		}
	}
}

func (p *literalParser) parseDict() (any, error) {
	p.pos++ // consume '{'
	result := map[string]any{}
	for {
		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, errors.New("unterminated dict")
		}
		if c == '}' {
			p.pos++
			return result, nil
		}
		if c != '\'' && c != '"' {
			return nil, errors.New("dict keys must be strings")
		}
		key, err := p.parseString()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		c, ok = p.peek()
		if !ok || c != ':' {
			return nil, errors.New("expected ':' after dict key")
		}
		p.pos++
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		result[key] = value
		p.skipSpace()
		c, ok = p.peek()
		if !ok {
			return nil, errors.New("unterminated dict")
		}
		switch c {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, fmt.Errorf("expected ',' or '}', got %q", c)
		}
	}
}
