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

package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// EventType represents the type of run lifecycle event.
type EventType string

const (
	// EventRunStarted is emitted when a workflow run begins.
	EventRunStarted EventType = "run_started"

	// EventStepStarted is emitted when a step begins executing.
	EventStepStarted EventType = "step_started"

	// EventStepCompleted is emitted when a step finishes, in any status.
	EventStepCompleted EventType = "step_completed"

	// EventRunFinished is emitted when a run reaches a terminal status.
	EventRunFinished EventType = "run_finished"
)

// Event represents a run lifecycle event.
type Event struct {
	Type      EventType      `json:"type"`
	Workflow  string         `json:"workflow"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// EventListener is a function that handles run events.
type EventListener func(ctx context.Context, event *Event) error

// EventEmitter manages event listeners and dispatches run events.
// Metrics collection and live run feeds subscribe here rather than
// hooking into the executor directly.
type EventEmitter struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
	async     bool
}

// NewEventEmitter creates a new event emitter. When async is true,
// listeners run in their own goroutines per event.
func NewEventEmitter(async bool) *EventEmitter {
	return &EventEmitter{
		listeners: make(map[EventType][]EventListener),
		async:     async,
	}
}

// On registers an event listener for the specified event type.
func (e *EventEmitter) On(eventType EventType, listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// Off removes all listeners for the event type.
func (e *EventEmitter) Off(eventType EventType) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.listeners, eventType)
}

// Emit dispatches an event to all registered listeners.
func (e *EventEmitter) Emit(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	listeners := make([]EventListener, len(e.listeners[event.Type]))
	copy(listeners, e.listeners[event.Type])
	e.mu.RUnlock()

	if e.async {
		return e.emitAsync(ctx, event, listeners)
	}
	return e.emitSync(ctx, event, listeners)
}

func (e *EventEmitter) emitSync(ctx context.Context, event *Event, listeners []EventListener) error {
	var lastError error

	for _, listener := range listeners {
		if err := listener(ctx, event); err != nil {
			// keep calling the remaining listeners
			lastError = err
		}
	}

	return lastError
}

func (e *EventEmitter) emitAsync(ctx context.Context, event *Event, listeners []EventListener) error {
	var wg sync.WaitGroup
	errChan := make(chan error, len(listeners))

	for _, listener := range listeners {
		wg.Add(1)
		go func(l EventListener) {
			defer wg.Done()
			if err := l(ctx, event); err != nil {
				errChan <- err
			}
		}(listener)
	}

	wg.Wait()
	close(errChan)

	var lastError error
	for err := range errChan {
		lastError = err
	}

	return lastError
}

// EmitRunStarted emits a run start event.
func (e *EventEmitter) EmitRunStarted(ctx context.Context, workflow, runID string, stepCount int) error {
	return e.Emit(ctx, &Event{
		Type:     EventRunStarted,
		Workflow: workflow,
		RunID:    runID,
		Data: map[string]any{
			"steps": stepCount,
		},
	})
}

// EmitStepCompleted emits a step completion event.
func (e *EventEmitter) EmitStepCompleted(ctx context.Context, workflow, runID string, record *StepRecord, duration time.Duration) error {
	return e.Emit(ctx, &Event{
		Type:     EventStepCompleted,
		Workflow: workflow,
		RunID:    runID,
		Data: map[string]any{
			"step":     record.ID,
			"type":     record.Type,
			"status":   string(record.Status),
			"duration": duration.Seconds(),
		},
	})
}

// EmitRunFinished emits a run terminal event.
func (e *EventEmitter) EmitRunFinished(ctx context.Context, log *RunLog) error {
	return e.Emit(ctx, &Event{
		Type:     EventRunFinished,
		Workflow: log.Workflow,
		RunID:    log.RunID,
		Data: map[string]any{
			"status":   string(log.Status),
			"steps":    len(log.Steps),
			"duration": log.Duration().Seconds(),
		},
	})
}
