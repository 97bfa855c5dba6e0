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

package validate

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/reprise/internal/commands/shared"
)

const validDefinition = `name: daily_report
trigger:
  type: schedule
  cron: "0 9 * * *"
steps:
  - id: step_1
    type: log
    params:
      message: hello
`

func TestValidateCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_report.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validDefinition), 0o644))

	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "daily_report is valid")
	assert.Contains(t, buf.String(), "0 9 * * *")
}

func TestValidateCommand_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\ntrigger:\n  type: manual\nsteps: []\n"), 0o644))

	cmd := NewCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.True(t, stderrors.As(err, &exitErr))
	assert.Equal(t, shared.ExitInvalidWorkflow, exitErr.Code)
}

func TestIsPath(t *testing.T) {
	assert.True(t, isPath("dir/file.yaml"))
	assert.True(t, isPath("file.yml"))
	assert.False(t, isPath("daily_report"))
}
