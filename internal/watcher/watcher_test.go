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

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReloader struct {
	calls atomic.Int32
}

func (c *countingReloader) Reload() int {
	c.calls.Add(1)
	return 1
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/wf/daily_report.yaml", true},
		{"/wf/daily_report.yml", true},
		{"/wf/notes.md", false},
		{"/wf/.daily_report.yaml.swp", false},
		{"/wf/daily_report.yaml~", false},
		{"/wf/#daily_report.yaml#", false},
		{"/wf/.DS_Store", false},
		{"/wf/backup.tmp", false},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.path))
		})
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	reloader := &countingReloader{}

	w, err := New(Config{Dir: dir, Reloader: reloader, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "wf.yaml"), []byte("name: wf\n"), 0o644))

	require.Eventually(t, func() bool {
		return reloader.calls.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	reloader := &countingReloader{}

	w, err := New(Config{Dir: dir, Reloader: reloader, Debounce: 100 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// a burst of writes within the debounce window collapses to one reload
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "wf.yaml"), []byte("name: wf\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return reloader.calls.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, reloader.calls.Load(), int32(2))
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	reloader := &countingReloader{}

	w, err := New(Config{Dir: dir, Reloader: reloader, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o644))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), reloader.calls.Load())
}

func TestNew_RequiresReloader(t *testing.T) {
	_, err := New(Config{Dir: t.TempDir()})
	require.Error(t, err)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(Config{Dir: filepath.Join(t.TempDir(), "nope"), Reloader: &countingReloader{}})
	require.Error(t, err)
}
