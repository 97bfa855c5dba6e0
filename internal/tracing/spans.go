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

package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/reprise/pkg/workflow"
)

// SpanListener projects run lifecycle events onto OpenTelemetry spans
// and a step-latency histogram. One span covers the whole run; each
// completed step becomes a child span backdated by its duration, so
// skipped and failed steps appear on the trace too.
type SpanListener struct {
	tracer       trace.Tracer
	stepDuration metric.Float64Histogram

	mu   sync.Mutex
	runs map[string]*runSpan
}

type runSpan struct {
	ctx  context.Context
	span trace.Span
}

// NewSpanListener builds a listener recording through the given tracer
// and meter. Pass the Provider's Tracer and Meter; with export disabled
// both are no-ops and the listener costs nothing.
func NewSpanListener(tracer trace.Tracer, meter metric.Meter) (*SpanListener, error) {
	stepDuration, err := meter.Float64Histogram(
		"reprise.step.duration",
		metric.WithDescription("Workflow step execution time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &SpanListener{
		tracer:       tracer,
		stepDuration: stepDuration,
		runs:         make(map[string]*runSpan),
	}, nil
}

// Attach subscribes the listener to run lifecycle events.
func (l *SpanListener) Attach(emitter *workflow.EventEmitter) {
	emitter.On(workflow.EventRunStarted, l.onRunStarted)
	emitter.On(workflow.EventStepCompleted, l.onStepCompleted)
	emitter.On(workflow.EventRunFinished, l.onRunFinished)
}

func (l *SpanListener) onRunStarted(ctx context.Context, event *workflow.Event) error {
	spanCtx, span := l.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.name", event.Workflow),
			attribute.String("run.id", event.RunID),
		))

	l.mu.Lock()
	l.runs[event.RunID] = &runSpan{ctx: spanCtx, span: span}
	l.mu.Unlock()
	return nil
}

func (l *SpanListener) onStepCompleted(ctx context.Context, event *workflow.Event) error {
	l.mu.Lock()
	parent := l.runs[event.RunID]
	l.mu.Unlock()

	stepCtx := ctx
	if parent != nil {
		stepCtx = parent.ctx
	}

	stepID, _ := event.Data["step"].(string)
	stepType, _ := event.Data["type"].(string)
	status, _ := event.Data["status"].(string)
	durationSec, _ := event.Data["duration"].(float64)

	// the step already ran; backdate the span to cover it
	started := event.Timestamp.Add(-time.Duration(durationSec * float64(time.Second)))
	_, span := l.tracer.Start(stepCtx, "workflow.step",
		trace.WithTimestamp(started),
		trace.WithAttributes(
			attribute.String("step.id", stepID),
			attribute.String("step.type", stepType),
			attribute.String("step.status", status),
		))
	if status == string(workflow.StepFailed) {
		span.SetStatus(codes.Error, "step failed")
	}
	span.End(trace.WithTimestamp(event.Timestamp))

	l.stepDuration.Record(ctx, durationSec,
		metric.WithAttributes(
			attribute.String("step.type", stepType),
			attribute.String("step.status", status),
		))
	return nil
}

func (l *SpanListener) onRunFinished(ctx context.Context, event *workflow.Event) error {
	l.mu.Lock()
	entry, ok := l.runs[event.RunID]
	delete(l.runs, event.RunID)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	status, _ := event.Data["status"].(string)
	entry.span.SetAttributes(attribute.String("run.status", status))
	if status == string(workflow.StatusFailed) {
		entry.span.SetStatus(codes.Error, "run failed")
	}
	entry.span.End()
	return nil
}
