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

// Package metrics exposes Prometheus counters and histograms for
// workflow execution, fed from executor events.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tombee/reprise/pkg/workflow"
)

// Collector holds the engine's Prometheus instruments.
type Collector struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	stepsTotal     *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	schedulerFires *prometheus.CounterVec
	activeRuns     prometheus.Gauge
}

// NewCollector creates and registers the instruments on a fresh
// registry, so tests can build collectors without panicking on
// duplicate registration.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	c := &Collector{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reprise_runs_total",
			Help: "Workflow runs by final status.",
		}, []string{"workflow", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reprise_run_duration_seconds",
			Help:    "Workflow run duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"workflow"}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reprise_steps_total",
			Help: "Executed steps by type and status.",
		}, []string{"workflow", "type", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reprise_step_duration_seconds",
			Help:    "Step execution duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}, []string{"workflow", "type"}),
		schedulerFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reprise_scheduler_fires_total",
			Help: "Cron firings by workflow.",
		}, []string{"workflow"}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reprise_active_runs",
			Help: "Workflow runs currently executing.",
		}),
	}
	registry.MustRegister(
		c.runsTotal, c.runDuration,
		c.stepsTotal, c.stepDuration,
		c.schedulerFires, c.activeRuns,
	)
	return c
}

// Attach subscribes the collector to executor events.
func (c *Collector) Attach(emitter *workflow.EventEmitter) {
	emitter.On(workflow.EventRunStarted, func(_ context.Context, _ *workflow.Event) error {
		c.activeRuns.Inc()
		return nil
	})
	emitter.On(workflow.EventRunFinished, func(_ context.Context, e *workflow.Event) error {
		c.activeRuns.Dec()
		status, _ := e.Data["status"].(string)
		duration, _ := e.Data["duration"].(float64)
		c.runsTotal.WithLabelValues(e.Workflow, status).Inc()
		c.runDuration.WithLabelValues(e.Workflow).Observe(duration)
		return nil
	})
	emitter.On(workflow.EventStepCompleted, func(_ context.Context, e *workflow.Event) error {
		stepType, _ := e.Data["type"].(string)
		status, _ := e.Data["status"].(string)
		duration, _ := e.Data["duration"].(float64)
		c.stepsTotal.WithLabelValues(e.Workflow, stepType, status).Inc()
		c.stepDuration.WithLabelValues(e.Workflow, stepType).Observe(duration)
		return nil
	})
}

// RecordSchedulerFire counts one cron firing.
func (c *Collector) RecordSchedulerFire(workflowName string) {
	c.schedulerFires.WithLabelValues(workflowName).Inc()
}

// Registry exposes the underlying registry so the tracing layer can
// add its own instruments.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
