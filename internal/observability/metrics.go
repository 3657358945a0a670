package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Metrics holds the Prometheus metrics of a build run. Each instance owns
// its registry so a run can be exported on its own.
type Metrics struct {
	registry *prometheus.Registry

	BuildsTotal      *prometheus.CounterVec
	BuildDuration    *prometheus.HistogramVec
	BuildsInProgress prometheus.Gauge

	PublishesTotal  *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec

	RevisionsTotal *prometheus.CounterVec

	ItemsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all run metrics
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "base_images"
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		BuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Total number of image builds",
			},
			[]string{"definition", "status"},
		),
		BuildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Time taken to build and verify an image",
				Buckets:   []float64{30, 60, 120, 300, 600, 900, 1200, 1800, 3600},
			},
			[]string{"status"},
		),
		BuildsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "builds_in_progress",
				Help:      "Number of builds currently running",
			},
		),

		PublishesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publishes_total",
				Help:      "Total number of image pushes",
			},
			[]string{"definition", "status"},
		),
		PublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "Time taken to push an image",
				Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"status"},
		),

		RevisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "revisions_total",
				Help:      "Total number of revision records written",
			},
			[]string{"status"},
		),

		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Definitions processed, by the stage they stopped at",
			},
			[]string{"stage", "status"},
		),
	}
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordBuild records a finished build and its duration
func (m *Metrics) RecordBuild(definition, status string, seconds float64) {
	m.BuildsTotal.WithLabelValues(definition, status).Inc()
	m.BuildDuration.WithLabelValues(status).Observe(seconds)
}

// IncBuildsInProgress increments builds in progress
func (m *Metrics) IncBuildsInProgress() {
	m.BuildsInProgress.Inc()
}

// DecBuildsInProgress decrements builds in progress
func (m *Metrics) DecBuildsInProgress() {
	m.BuildsInProgress.Dec()
}

// RecordPublish records a finished push and its duration
func (m *Metrics) RecordPublish(definition, status string, seconds float64) {
	m.PublishesTotal.WithLabelValues(definition, status).Inc()
	m.PublishDuration.WithLabelValues(status).Observe(seconds)
}

// RecordRevision records a revision record write attempt
func (m *Metrics) RecordRevision(status string) {
	m.RevisionsTotal.WithLabelValues(status).Inc()
}

// RecordItem records the final state of one definition
func (m *Metrics) RecordItem(stage, status string) {
	m.ItemsTotal.WithLabelValues(stage, status).Inc()
}

// WriteTextfile writes all metrics in the text exposition format, for pickup
// by the node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
