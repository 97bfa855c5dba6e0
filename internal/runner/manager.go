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

// Package runner tracks live workflow runs and serves manual triggers.
//
// The Manager enforces at-most-one live run per workflow name and is
// the cancellation entry point; the Service layers loading, context
// seeding, journaling and the stop grace window on top of it.
package runner

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ActiveRun is the handle the manager keeps for one live run.
type ActiveRun struct {
	// RunID identifies the run for status queries
	RunID string

	// Workflow is the workflow name the run executes
	Workflow string

	// StartedAt is when the slot was claimed
	StartedAt time.Time

	cancel     context.CancelFunc
	cancelOnce sync.Once

	// done closes when the run's goroutine has fully exited
	done chan struct{}
}

// Cancel signals cooperative cancellation to the run. Safe to call more
// than once.
func (a *ActiveRun) Cancel() {
	a.cancelOnce.Do(a.cancel)
}

// Done returns a channel closed when the run has finished.
func (a *ActiveRun) Done() <-chan struct{} {
	return a.done
}

// Manager maps workflow names to their live run, enforcing at most one
// live run per name. Every public call is O(1) under one mutex.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*ActiveRun
}

// NewManager creates an empty run manager.
func NewManager() *Manager {
	return &Manager{runs: make(map[string]*ActiveRun)}
}

// Register claims the run slot for a workflow. It returns the active
// run handle and true on success, or nil and false when a run is
// already live under that name. The returned cancel must eventually be
// released through Unregister on every exit path.
func (m *Manager) Register(name, runID string, cancel context.CancelFunc) (*ActiveRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.runs[name]; busy {
		return nil, false
	}
	run := &ActiveRun{
		RunID:     runID,
		Workflow:  name,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.runs[name] = run
	return run, true
}

// Unregister releases the run slot. Idempotent: unknown names are
// ignored, so it is safe to defer on every exit path.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	run, ok := m.runs[name]
	if ok {
		delete(m.runs, name)
	}
	m.mu.Unlock()

	if ok {
		close(run.done)
	}
}

// IsRunning reports whether a run is live for the workflow.
func (m *Manager) IsRunning(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[name]
	return ok
}

// Get returns the live run handle for a workflow, if any.
func (m *Manager) Get(name string) (*ActiveRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[name]
	return run, ok
}

// Cancel signals cancellation to the live run of a workflow. It returns
// false when no run is live.
func (m *Manager) Cancel(name string) bool {
	m.mu.Lock()
	run, ok := m.runs[name]
	m.mu.Unlock()

	if !ok {
		return false
	}
	run.Cancel()
	return true
}

// Running returns the names of all workflows with a live run, sorted.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.runs))
	for name := range m.runs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
