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

// Package journal persists run logs as an append-only sequence of daily
// JSONL files.
//
// Each calendar day in the configured timezone gets one file named
// YYYYMMDD.jsonl under the runs directory, each line one serialized
// RunLog. Appends open, write and close so a concurrent retention sweep
// never holds up a writer; readers skip malformed lines so a partially
// written trailing line cannot break queries.
package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/tombee/reprise/pkg/workflow"
)

// Ext is the journal file extension, including the dot.
const Ext = ".jsonl"

// dayFilePattern matches journal filenames; anything else in the runs
// directory is left alone by the retention sweep.
var dayFilePattern = regexp.MustCompile(`^(\d{8})\.jsonl$`)

// Journal reads and writes the daily run log files under one directory.
type Journal struct {
	dir      string
	location *time.Location
	logger   *slog.Logger

	// appendMu serializes appends within this process so two runs
	// terminating at once cannot interleave partial lines.
	appendMu sync.Mutex
}

// New creates a journal rooted at dir. Day boundaries and the retention
// cutoff are evaluated in loc.
func New(dir string, loc *time.Location, logger *slog.Logger) *Journal {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{
		dir:      dir,
		location: loc,
		logger:   logger.With("component", "journal"),
	}
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Append writes one terminated run log as a single line to today's file.
// Non-ASCII text is written verbatim; the encoder never escapes to
// \uXXXX for characters outside ASCII.
func (j *Journal) Append(log *workflow.RunLog) error {
	if log == nil {
		return fmt.Errorf("journal: nil run log")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(log); err != nil {
		return fmt.Errorf("journal: encoding run log: %w", err)
	}

	j.appendMu.Lock()
	defer j.appendMu.Unlock()

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("journal: creating runs directory: %w", err)
	}

	path := filepath.Join(j.dir, time.Now().In(j.location).Format("20060102")+Ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journal: opening %s: %w", filepath.Base(path), err)
	}
	_, writeErr := f.Write(buf.Bytes())
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("journal: appending to %s: %w", filepath.Base(path), writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("journal: closing %s: %w", filepath.Base(path), closeErr)
	}
	return nil
}

// RunsFor returns runs of one workflow, newest first, after applying
// offset and limit. A limit of 0 means no limit.
func (j *Journal) RunsFor(workflowName string, limit, offset int) []*workflow.RunLog {
	return j.query(limit, offset, func(r *workflow.RunLog) bool {
		return r.Workflow == workflowName
	})
}

// All returns runs across workflows, newest first. When workflowFilter
// is non-empty only matching runs are returned.
func (j *Journal) All(limit, offset int, workflowFilter string) []*workflow.RunLog {
	return j.query(limit, offset, func(r *workflow.RunLog) bool {
		return workflowFilter == "" || r.Workflow == workflowFilter
	})
}

// CountFor returns the total number of recorded runs for one workflow.
func (j *Journal) CountFor(workflowName string) int {
	return j.count(func(r *workflow.RunLog) bool {
		return r.Workflow == workflowName
	})
}

// CountAll returns the total number of recorded runs, optionally
// filtered by workflow name.
func (j *Journal) CountAll(workflowFilter string) int {
	return j.count(func(r *workflow.RunLog) bool {
		return workflowFilter == "" || r.Workflow == workflowFilter
	})
}

// Latest returns the most recent run of one workflow, or nil when the
// workflow has never run.
func (j *Journal) Latest(workflowName string) *workflow.RunLog {
	m := j.LatestMap([]string{workflowName})
	return m[workflowName]
}

// LatestMap returns the most recent run per requested workflow. Each
// journal file is read at most once, newest day first, and the scan
// stops as soon as every requested name has been seen. Names that never
// ran are absent from the result.
func (j *Journal) LatestMap(names []string) map[string]*workflow.RunLog {
	result := make(map[string]*workflow.RunLog, len(names))
	if len(names) == 0 {
		return result
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	for _, file := range j.dayFiles() {
		// within one file, later lines are later runs; track the max
		// started_at per workflow seen in this file
		for _, run := range j.readFile(file) {
			if !wanted[run.Workflow] {
				continue
			}
			if prev, ok := result[run.Workflow]; !ok || run.StartedAt > prev.StartedAt {
				result[run.Workflow] = run
			}
		}
		if len(result) == len(wanted) {
			break
		}
	}
	return result
}

// query scans newest day first, filters, sorts by started_at descending
// and applies offset and limit.
func (j *Journal) query(limit, offset int, keep func(*workflow.RunLog) bool) []*workflow.RunLog {
	var matches []*workflow.RunLog
	for _, file := range j.dayFiles() {
		for _, run := range j.readFile(file) {
			if keep(run) {
				matches = append(matches, run)
			}
		}
		// files are scanned newest day first; once this day is done we
		// have every run newer than the remaining files, so stop when
		// the window is satisfied
		if limit > 0 && len(matches) >= offset+limit {
			break
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].StartedAt > matches[b].StartedAt
	})

	if offset >= len(matches) {
		return []*workflow.RunLog{}
	}
	matches = matches[offset:]
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func (j *Journal) count(keep func(*workflow.RunLog) bool) int {
	total := 0
	for _, file := range j.dayFiles() {
		for _, run := range j.readFile(file) {
			if keep(run) {
				total++
			}
		}
	}
	return total
}

// dayFiles returns the journal file paths sorted newest day first.
func (j *Journal) dayFiles() []string {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if dayFilePattern.MatchString(entry.Name()) {
			files = append(files, filepath.Join(j.dir, entry.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files
}

// readFile parses one journal file, skipping malformed lines with a
// warning. A file that disappeared mid-scan (retention sweep) yields no
// runs.
func (j *Journal) readFile(path string) []*workflow.RunLog {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var runs []*workflow.RunLog
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var run workflow.RunLog
		if err := json.Unmarshal(line, &run); err != nil {
			j.logger.Warn("skipping malformed journal line",
				"file", filepath.Base(path), "line", lineNo, "error", err)
			continue
		}
		runs = append(runs, &run)
	}
	if err := scanner.Err(); err != nil {
		j.logger.Warn("journal file read interrupted",
			"file", filepath.Base(path), "error", err)
	}
	return runs
}

// CleanupResult summarizes one retention sweep.
type CleanupResult struct {
	DeletedCount int      `json:"deleted_count"`
	KeptCount    int      `json:"kept_count"`
	DeletedBytes int64    `json:"deleted_bytes"`
	Cutoff       string   `json:"cutoff"`
	DeletedFiles []string `json:"deleted_files"`
}

// Cleanup deletes journal files whose date stem is strictly older than
// now minus retentionDays, evaluated in the configured timezone. Files
// whose name does not match the day pattern are never touched. Safe to
// run while appends are in flight: today's file is recreated by the
// next append if the sweep races it.
func (j *Journal) Cleanup(retentionDays int) (*CleanupResult, error) {
	if retentionDays < 0 {
		return nil, fmt.Errorf("journal: retention days must not be negative, got %d", retentionDays)
	}

	cutoff := time.Now().In(j.location).AddDate(0, 0, -retentionDays).Format("20060102")
	result := &CleanupResult{
		Cutoff:       cutoff,
		DeletedFiles: []string{},
	}

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("journal: reading runs directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := dayFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if m[1] >= cutoff {
			result.KeptCount++
			continue
		}

		path := filepath.Join(j.dir, entry.Name())
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		if err := os.Remove(path); err != nil {
			j.logger.Warn("failed to delete journal file", "file", entry.Name(), "error", err)
			result.KeptCount++
			continue
		}
		result.DeletedCount++
		result.DeletedBytes += size
		result.DeletedFiles = append(result.DeletedFiles, entry.Name())
		j.logger.Info("deleted journal file", "file", entry.Name(), "size", size)
	}

	return result, nil
}
