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

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotWritesTimestampedFile(t *testing.T) {
	m := NewManager(t.TempDir(), 10, time.UTC)

	path, err := m.Snapshot("daily_report", "name: daily_report\n")
	require.NoError(t, err)
	require.NotEmpty(t, path)

	assert.Regexp(t, `daily_report[/\\]\d{8}_\d{6}\.yaml$`, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name: daily_report\n", string(data))
}

func TestSnapshotSkipsEmptyContent(t *testing.T) {
	m := NewManager(t.TempDir(), 10, time.UTC)

	path, err := m.Snapshot("wf", "   \n")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestSnapshotRejectsPathTraversal(t *testing.T) {
	m := NewManager(t.TempDir(), 10, time.UTC)

	_, err := m.Snapshot("../evil", "content")
	assert.Error(t, err)
}

func TestSnapshotDisambiguatesWithinOneSecond(t *testing.T) {
	m := NewManager(t.TempDir(), 10, time.UTC)

	first, err := m.Snapshot("wf", "v1")
	require.NoError(t, err)
	second, err := m.Snapshot("wf", "v2")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	snaps, err := m.List("wf")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestPruneKeepsNewestN(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, 3, time.UTC)

	wfDir := filepath.Join(dir, "wf")
	require.NoError(t, os.MkdirAll(wfDir, 0o755))
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("2026082%d_120000.yaml", i)
		require.NoError(t, os.WriteFile(filepath.Join(wfDir, name), []byte("old"), 0o644))
	}

	_, err := m.Snapshot("wf", "new content")
	require.NoError(t, err)

	snaps, err := m.List("wf")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	// newest first; the freshly written snapshot has today's stamp
	assert.Greater(t, snaps[0].Filename, snaps[1].Filename)
	assert.Greater(t, snaps[1].Filename, snaps[2].Filename)
}

func TestListUnknownWorkflowIsEmpty(t *testing.T) {
	m := NewManager(t.TempDir(), 10, time.UTC)

	snaps, err := m.List("never_saved")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestReadSnapshot(t *testing.T) {
	m := NewManager(t.TempDir(), 10, time.UTC)

	path, err := m.Snapshot("wf", "name: wf\n")
	require.NoError(t, err)

	content, err := m.Read("wf", filepath.Base(path))
	require.NoError(t, err)
	assert.Equal(t, "name: wf\n", content)

	_, err = m.Read("wf", "../escape.yaml")
	assert.Error(t, err)
}
