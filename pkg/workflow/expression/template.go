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
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RenderParams expands every value of a parameter map. Keys are never
// touched. A nil map renders to an empty one.
func (e *Engine) RenderParams(params, ctx map[string]any) map[string]any {
	rendered := make(map[string]any, len(params))
	for key, value := range params {
		rendered[key] = e.RenderValue(value, ctx)
	}
	return rendered
}

// RenderValue walks a parameter value: maps recurse per value, slices
// per element, strings render, everything else passes through unchanged.
func (e *Engine) RenderValue(value any, ctx map[string]any) any {
	switch v := value.(type) {
	case string:
		return e.RenderString(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			out[key] = e.RenderValue(elem, ctx)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(v))
		for key, elem := range v {
			out[key] = e.RenderValue(elem, ctx)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = e.RenderValue(elem, ctx)
		}
		return out
	default:
		return value
	}
}

// RenderString expands one template string.
//
// A string that is exactly one {{ expression }} returns the typed value
// of the expression, so lists and maps survive into the next action; an
// undefined result is nil. Any other template returns the rendered
// string. Failures degrade instead of erroring: an expression problem in
// the single-expression form falls back to plain rendering, and a string
// that cannot render at all is returned unchanged.
func (e *Engine) RenderString(s string, ctx map[string]any) any {
	if !strings.Contains(s, "{{") && !strings.Contains(s, "{%") {
		return s
	}

	stripped := strings.TrimSpace(s)
	if strings.HasPrefix(stripped, "{{") && strings.HasSuffix(stripped, "}}") &&
		strings.Count(stripped, "{{") == 1 && !strings.Contains(stripped, "{%") {
		inner := strings.TrimSuffix(strings.TrimPrefix(stripped, "{{"), "}}")
		// whitespace-control dashes sit directly against the braces,
		// unlike a unary minus
		inner = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(inner, "-"), "-"))
		value, err := e.Evaluate(inner, ctx)
		if err == nil {
			return value
		}
		e.logger.Warn("template expression eval error", "expression", inner, "error", err)
	}

	nodes, err := parseTemplate(s)
	if err != nil {
		e.logger.Error("template parse error", "error", err)
		return s
	}

	var sb strings.Builder
	if err := renderNodes(e, nodes, ctx, &sb); err != nil {
		e.logger.Error("template render error", "error", err)
		return s
	}
	return sb.String()
}

// template tokens

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenExpr
	tokenTag
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits a template into literal text, {{ expr }} markers and
// {% tag %} markers. Jinja-style whitespace control dashes ({%- -%}) trim
// the adjacent literal text.
func tokenize(src string) ([]token, error) {
	var (
		tokens   []token
		trimNext bool
	)
	pos := 0
	for pos < len(src) {
		exprIdx := strings.Index(src[pos:], "{{")
		tagIdx := strings.Index(src[pos:], "{%")

		idx, open, closer := -1, "", ""
		kind := tokenText
		switch {
		case exprIdx >= 0 && (tagIdx < 0 || exprIdx < tagIdx):
			idx, open, closer, kind = pos+exprIdx, "{{", "}}", tokenExpr
		case tagIdx >= 0:
			idx, open, closer, kind = pos+tagIdx, "{%", "%}", tokenTag
		}

		if idx < 0 {
			text := src[pos:]
			if trimNext {
				text = strings.TrimLeft(text, " \t\r\n")
			}
			if text != "" {
				tokens = append(tokens, token{tokenText, text})
			}
			break
		}

		end := strings.Index(src[idx+len(open):], closer)
		if end < 0 {
			return nil, fmt.Errorf("unclosed %s marker", open)
		}
		inner := src[idx+len(open) : idx+len(open)+end]

		trimLeft := strings.HasPrefix(inner, "-")
		trimRight := strings.HasSuffix(inner, "-")
		inner = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(inner, "-"), "-"))

		text := src[pos:idx]
		if trimNext {
			text = strings.TrimLeft(text, " \t\r\n")
		}
		if trimLeft {
			text = strings.TrimRight(text, " \t\r\n")
		}
		if text != "" {
			tokens = append(tokens, token{tokenText, text})
		}

		tokens = append(tokens, token{kind, inner})
		trimNext = trimRight
		pos = idx + len(open) + end + len(closer)
	}
	return tokens, nil
}

// template nodes

type node interface {
	render(e *Engine, ctx map[string]any, sb *strings.Builder) error
}

type textNode string

func (n textNode) render(_ *Engine, _ map[string]any, sb *strings.Builder) error {
	sb.WriteString(string(n))
	return nil
}

type exprNode string

func (n exprNode) render(e *Engine, ctx map[string]any, sb *strings.Builder) error {
	value, err := e.Evaluate(string(n), ctx)
	if err != nil {
		return err
	}
	sb.WriteString(Stringify(value))
	return nil
}

type ifBranch struct {
	cond string
	body []node
}

type ifNode struct {
	branches []ifBranch
	elseBody []node
}

func (n *ifNode) render(e *Engine, ctx map[string]any, sb *strings.Builder) error {
	for _, branch := range n.branches {
		ok, err := e.EvaluateBool(branch.cond, ctx)
		if err != nil {
			return err
		}
		if ok {
			return renderNodes(e, branch.body, ctx, sb)
		}
	}
	return renderNodes(e, n.elseBody, ctx, sb)
}

func renderNodes(e *Engine, nodes []node, ctx map[string]any, sb *strings.Builder) error {
	for _, n := range nodes {
		if err := n.render(e, ctx, sb); err != nil {
			return err
		}
	}
	return nil
}

// parser

type parser struct {
	tokens []token
	pos    int
}

func parseTemplate(src string) ([]node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	nodes, stop, err := p.parseNodes(false)
	if err != nil {
		return nil, err
	}
	if stop != "" {
		return nil, fmt.Errorf("unexpected tag: %s", stop)
	}
	return nodes, nil
}

// parseNodes consumes tokens until the end of input or, when insideIf is
// set, until an elif/else/endif tag. It returns the stopping tag so the
// if parser can continue the chain.
func (p *parser) parseNodes(insideIf bool) ([]node, string, error) {
	var nodes []node
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		switch tok.kind {
		case tokenText:
			p.pos++
			nodes = append(nodes, textNode(tok.text))
		case tokenExpr:
			p.pos++
			nodes = append(nodes, exprNode(tok.text))
		case tokenTag:
			head, rest := splitTag(tok.text)
			switch head {
			case "if":
				p.pos++
				ifN, err := p.parseIf(rest)
				if err != nil {
					return nil, "", err
				}
				nodes = append(nodes, ifN)
			case "elif", "else", "endif":
				if !insideIf {
					return nil, "", fmt.Errorf("unexpected tag: %s", head)
				}
				return nodes, tok.text, nil
			default:
				return nil, "", fmt.Errorf("unsupported tag: %s", head)
			}
		}
	}
	if insideIf {
		return nil, "", fmt.Errorf("missing endif")
	}
	return nodes, "", nil
}

func (p *parser) parseIf(cond string) (*ifNode, error) {
	if cond == "" {
		return nil, fmt.Errorf("if tag requires a condition")
	}
	n := &ifNode{}
	current := cond
	for {
		body, stop, err := p.parseNodes(true)
		if err != nil {
			return nil, err
		}
		n.branches = append(n.branches, ifBranch{cond: current, body: body})
		p.pos++ // consume the stopping tag

		head, rest := splitTag(stop)
		switch head {
		case "elif":
			if rest == "" {
				return nil, fmt.Errorf("elif tag requires a condition")
			}
			current = rest
		case "else":
			if rest != "" {
				return nil, fmt.Errorf("unexpected text after else: %s", rest)
			}
			elseBody, stop, err := p.parseNodes(true)
			if err != nil {
				return nil, err
			}
			p.pos++
			if head, _ := splitTag(stop); head != "endif" {
				return nil, fmt.Errorf("expected endif, got %s", head)
			}
			n.elseBody = elseBody
			return n, nil
		case "endif":
			return n, nil
		}
	}
}

func splitTag(src string) (head, rest string) {
	src = strings.TrimSpace(src)
	if i := strings.IndexAny(src, " \t"); i >= 0 {
		return src[:i], strings.TrimSpace(src[i+1:])
	}
	return src, ""
}

// Stringify converts an expression value to its in-template text form.
// Undefined and nil values disappear, collections render in bracket form
// with ", " separators ("[1, 2]"), and whole floats keep a trailing .0
// so numeric text stays unambiguous.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return reprValue(value)
	}
}

func reprValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), "'", `\'`) + "'"
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	case []any:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = reprValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = reprValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = reprValue(key) + ": " + reprValue(v[key])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatFloat renders whole floats with a trailing .0, matching how
// numeric results read in run logs.
func formatFloat(v float64) string {
	if v == float64(int64(v)) && v > -1e15 && v < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
