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

package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	out, err := JSON(`{"b":1,"a":[1,2]}`)
	require.NoError(t, err)
	assert.Contains(t, out, "  \"a\"")

	_, err = JSON("not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestMarkdown_NonTTYPassesThrough(t *testing.T) {
	content := "# Title\n\nsome *text*\n"
	out, err := Markdown(content, false)
	require.NoError(t, err)
	assert.Equal(t, content, out)
}

func TestTable(t *testing.T) {
	out := Table(
		[]string{"NAME", "STATUS"},
		[][]string{
			{"daily_report", "success"},
			{"sync", "failed"},
		},
		false,
	)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NAME          STATUS", lines[0])
	assert.Equal(t, "daily_report  success", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "sync"))
}

func TestTable_RaggedRows(t *testing.T) {
	out := Table([]string{"A"}, [][]string{{"x", "extra"}}, false)
	assert.Contains(t, out, "x")
	assert.NotContains(t, out, "extra")
}

func TestSanitizeANSI(t *testing.T) {
	assert.Equal(t, "plain", sanitizeANSI("\x1b[1mplain\x1b[0m"))
}
