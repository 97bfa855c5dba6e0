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

// Package backup snapshots workflow definition files before overwrites.
//
// Snapshots live under <backups_dir>/<workflow>/<YYYYMMDD_HHMMSS>.yaml
// and each workflow's directory is pruned to the newest N snapshots.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DefaultMaxSnapshots is how many snapshots are kept per workflow when
// no limit is configured.
const DefaultMaxSnapshots = 10

// snapshotPattern matches snapshot filenames produced by this manager.
var snapshotPattern = regexp.MustCompile(`^\d{8}_\d{6}(?:_\d+)?\.yaml$`)

// Snapshot describes one stored definition snapshot.
type Snapshot struct {
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
	Size      int64  `json:"size"`
}

// Manager stores workflow definition snapshots under one directory.
type Manager struct {
	dir      string
	max      int
	location *time.Location
}

// NewManager creates a backup manager rooted at dir keeping up to max
// snapshots per workflow. A max below 1 falls back to the default.
func NewManager(dir string, max int, loc *time.Location) *Manager {
	if max < 1 {
		max = DefaultMaxSnapshots
	}
	if loc == nil {
		loc = time.Local
	}
	return &Manager{dir: dir, max: max, location: loc}
}

// Snapshot writes the previous content of a workflow definition before
// it is overwritten, then prunes the workflow's snapshot directory to
// the newest max entries. Empty content is not snapshotted (there was
// nothing to lose). Returns the written path, or "" when nothing was
// written.
func (m *Manager) Snapshot(name, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("backup: invalid workflow name %q", name)
	}

	dir := filepath.Join(m.dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("backup: creating %s: %w", dir, err)
	}

	stamp := time.Now().In(m.location).Format("20060102_150405")
	path := filepath.Join(dir, stamp+".yaml")
	// two snapshots inside one second get a numeric suffix instead of
	// clobbering each other
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.yaml", stamp, i))
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("backup: writing snapshot: %w", err)
	}

	if err := m.prune(dir); err != nil {
		return path, err
	}
	return path, nil
}

// List returns the snapshots for one workflow, newest first.
func (m *Manager) List(name string) ([]Snapshot, error) {
	dir := filepath.Join(m.dir, name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Snapshot{}, nil
		}
		return nil, fmt.Errorf("backup: reading %s: %w", dir, err)
	}

	snapshots := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !snapshotPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, Snapshot{
			Filename:  entry.Name(),
			Timestamp: strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Size:      info.Size(),
		})
	}
	sort.Slice(snapshots, func(a, b int) bool {
		return snapshots[a].Filename > snapshots[b].Filename
	})
	return snapshots, nil
}

// Read returns the content of one snapshot file.
func (m *Manager) Read(name, filename string) (string, error) {
	if !snapshotPattern.MatchString(filename) {
		return "", fmt.Errorf("backup: invalid snapshot filename %q", filename)
	}
	data, err := os.ReadFile(filepath.Join(m.dir, name, filename))
	if err != nil {
		return "", fmt.Errorf("backup: reading snapshot: %w", err)
	}
	return string(data), nil
}

// prune deletes the oldest snapshots beyond the retention cap.
func (m *Manager) prune(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("backup: reading %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && snapshotPattern.MatchString(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	if len(names) <= m.max {
		return nil
	}
	// snapshot filenames sort chronologically
	sort.Strings(names)
	for _, name := range names[:len(names)-m.max] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("backup: pruning %s: %w", name, err)
		}
	}
	return nil
}
