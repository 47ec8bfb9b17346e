// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus collectors for pipeline activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the pipeline's Prometheus metrics. A nil Collector is
// valid and records nothing, so library code never branches on whether
// metrics are wired.
type Collector struct {
	RunsTotal    prometheus.Counter
	RunDuration  prometheus.Histogram
	ItemsTotal   *prometheus.CounterVec
	RetriesTotal prometheus.Counter
}

// NewCollector builds and registers the collectors on the given registry.
// A nil registry uses the default one.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total pipeline runs started",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_items_total",
			Help: "Deficiency items processed by outcome",
		}, []string{"outcome"}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backend_retries_total",
			Help: "Total rate-limit retries against the generation backend",
		}),
	}

	reg.MustRegister(c.RunsTotal, c.RunDuration, c.ItemsTotal, c.RetriesTotal)
	return c
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RunStarted records a new pipeline run.
func (c *Collector) RunStarted() {
	if c != nil {
		c.RunsTotal.Inc()
	}
}

// RunFinished records the run's wall-clock duration.
func (c *Collector) RunFinished(d time.Duration) {
	if c != nil {
		c.RunDuration.Observe(d.Seconds())
	}
}

// ItemProcessed records one item's outcome: resolved, failed, or unhandled.
func (c *Collector) ItemProcessed(outcome string) {
	if c != nil {
		c.ItemsTotal.WithLabelValues(outcome).Inc()
	}
}

// RetryObserved records one backend retry.
func (c *Collector) RetryObserved() {
	if c != nil {
		c.RetriesTotal.Inc()
	}
}
