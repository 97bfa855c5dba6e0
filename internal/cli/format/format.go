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

// Package format provides CLI output formatting with TTY detection.
package format

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Maximum output sizes; anything larger is a bug upstream.
const (
	maxJSONSize     = 10 * 1024 * 1024 // 10MB
	maxMarkdownSize = 5 * 1024 * 1024  // 5MB
)

// ansiEscapeRegex matches ANSI escape sequences for sanitization.
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// sanitizeANSI removes ANSI escape sequences from a string.
func sanitizeANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

// Markdown renders markdown with ANSI formatting if stdout is a TTY.
// Falls back to plain text if glamour fails or stdout is not a TTY.
func Markdown(content string, isTTY bool) (string, error) {
	if len(content) > maxMarkdownSize {
		return "", fmt.Errorf("markdown output too large: %d bytes", len(content))
	}

	if !isTTY {
		return content, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content, nil
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return content, nil
	}

	return sanitizeANSI(rendered), nil
}

// JSON pretty-prints JSON with 2-space indentation.
func JSON(content string) (string, error) {
	if len(content) > maxJSONSize {
		return "", fmt.Errorf("json output too large: %d bytes", len(content))
	}

	var obj any
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	formatted, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format JSON: %w", err)
	}

	return string(formatted), nil
}

// headerStyle styles table header cells on a TTY.
var headerStyle = lipgloss.NewStyle().Bold(true)

// Table renders a simple left-aligned column table. Headers are bolded
// on a TTY; column widths track the widest cell.
func Table(headers []string, rows [][]string, isTTY bool) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style *lipgloss.Style) {
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			padded := cell + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
			if style != nil && isTTY {
				padded = style.Render(padded)
			}
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(padded)
		}
		b.WriteString("\n")
	}

	writeRow(headers, &headerStyle)
	for _, row := range rows {
		writeRow(row, nil)
	}
	return b.String()
}
