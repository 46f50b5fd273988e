// Package metrics provides Prometheus metrics instrumentation for the controller.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector provides metrics recording interface.
// This allows components to record metrics without direct prometheus dependency.
type Collector interface {
	// Reconcile metrics
	RecordReconcile(ctx context.Context, status string, duration time.Duration)
	RecordReconcileError(ctx context.Context, errorType string)
	RecordPodCreated(ctx context.Context)
	RecordTeardown(ctx context.Context, status string)

	// Watch metrics
	RecordWatchRestart(ctx context.Context)
	RecordWatchEvent(ctx context.Context, eventType string)

	// Cleanup metrics
	RecordSweep(ctx context.Context, evicted int, duration time.Duration)
	RecordSweepError(ctx context.Context, errorType string)

	// Gateway metrics
	RecordHTTPRequest(ctx context.Context, route, code string, duration time.Duration)
	RecordFindOrCreate(ctx context.Context, outcome string)

	// Manifest metrics
	RecordImageDiscovery(ctx context.Context, result string)
}

// prometheusCollector implements Collector using Prometheus metrics.
type prometheusCollector struct {
	// Reconcile metrics
	reconcileDuration    *prometheus.HistogramVec
	reconcileErrorsTotal *prometheus.CounterVec
	podsCreatedTotal     prometheus.Counter
	teardownsTotal       *prometheus.CounterVec

	// Watch metrics
	watchRestartsTotal prometheus.Counter
	watchEventsTotal   *prometheus.CounterVec

	// Cleanup metrics
	sweepDuration    prometheus.Histogram
	evictionsTotal   prometheus.Counter
	sweepErrorsTotal *prometheus.CounterVec

	// Gateway metrics
	httpDuration        *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	findOrCreateTotal   *prometheus.CounterVec
	imageDiscoveryTotal *prometheus.CounterVec
}

// NewCollector creates a new Prometheus metrics collector and registers metrics.
func NewCollector(reg prometheus.Registerer) Collector {
	c := &prometheusCollector{}
	c.initReconcileMetrics()
	c.initWatchMetrics()
	c.initSweepMetrics()
	c.initGatewayMetrics()
	c.register(reg)

	return c
}

// RecordReconcile records the outcome and duration of one reconciliation.
func (c *prometheusCollector) RecordReconcile(_ context.Context, status string, duration time.Duration) {
	c.reconcileDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordReconcileError records a reconciliation error by type.
func (c *prometheusCollector) RecordReconcileError(_ context.Context, errorType string) {
	c.reconcileErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordPodCreated records a workload pod creation.
func (c *prometheusCollector) RecordPodCreated(_ context.Context) {
	c.podsCreatedTotal.Inc()
}

// RecordTeardown records a teardown outcome.
func (c *prometheusCollector) RecordTeardown(_ context.Context, status string) {
	c.teardownsTotal.WithLabelValues(status).Inc()
}

// RecordWatchRestart records a restart of the record watch stream.
func (c *prometheusCollector) RecordWatchRestart(_ context.Context) {
	c.watchRestartsTotal.Inc()
}

// RecordWatchEvent records a delivered watch event by type.
func (c *prometheusCollector) RecordWatchEvent(_ context.Context, eventType string) {
	c.watchEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordSweep records one cleanup scan and the number of records it evicted.
func (c *prometheusCollector) RecordSweep(_ context.Context, evicted int, duration time.Duration) {
	c.sweepDuration.Observe(duration.Seconds())
	c.evictionsTotal.Add(float64(evicted))
}

// RecordSweepError records a cleanup error by type.
func (c *prometheusCollector) RecordSweepError(_ context.Context, errorType string) {
	c.sweepErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordHTTPRequest records one gateway HTTP request.
func (c *prometheusCollector) RecordHTTPRequest(
	_ context.Context,
	route, code string,
	duration time.Duration,
) {
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
	c.httpRequestsTotal.WithLabelValues(route, code).Inc()
}

// RecordFindOrCreate records a find-or-create outcome (hit, created, conflict).
func (c *prometheusCollector) RecordFindOrCreate(_ context.Context, outcome string) {
	c.findOrCreateTotal.WithLabelValues(outcome).Inc()
}

// RecordImageDiscovery records an image discovery result (discovered, fallback).
func (c *prometheusCollector) RecordImageDiscovery(_ context.Context, result string) {
	c.imageDiscoveryTotal.WithLabelValues(result).Inc()
}

func (c *prometheusCollector) initReconcileMetrics() {
	c.reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "podlease_reconcile_duration_seconds",
			Help:    "Duration of record reconciliation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"},
	)
	c.reconcileErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podlease_reconcile_errors_total",
			Help: "Total reconciliation errors by type",
		},
		[]string{"error_type"},
	)
	c.podsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "podlease_pods_created_total",
			Help: "Total workload pods created",
		},
	)
	c.teardownsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podlease_teardowns_total",
			Help: "Total workload teardowns by status",
		},
		[]string{"status"},
	)
}

func (c *prometheusCollector) initWatchMetrics() {
	c.watchRestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "podlease_watch_restarts_total",
			Help: "Total record watch stream restarts",
		},
	)
	c.watchEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podlease_watch_events_total",
			Help: "Total record watch events by type",
		},
		[]string{"type"},
	)
}

func (c *prometheusCollector) initSweepMetrics() {
	c.sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "podlease_sweep_duration_seconds",
			Help:    "Duration of idle cleanup scans",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	c.evictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "podlease_evictions_total",
			Help: "Total records deleted for idle timeout",
		},
	)
	c.sweepErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podlease_sweep_errors_total",
			Help: "Total cleanup errors by type",
		},
		[]string{"error_type"},
	)
}

func (c *prometheusCollector) initGatewayMetrics() {
	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "podlease_http_request_duration_seconds",
			Help:    "Duration of gateway HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"route"},
	)
	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podlease_http_requests_total",
			Help: "Total gateway HTTP requests",
		},
		[]string{"route", "code"},
	)
	c.findOrCreateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podlease_find_or_create_total",
			Help: "Find-or-create outcomes",
		},
		[]string{"outcome"},
	)
	c.imageDiscoveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "podlease_image_discovery_total",
			Help: "Workload image discovery results",
		},
		[]string{"result"},
	)
}

func (c *prometheusCollector) register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.reconcileDuration,
		c.reconcileErrorsTotal,
		c.podsCreatedTotal,
		c.teardownsTotal,
		c.watchRestartsTotal,
		c.watchEventsTotal,
		c.sweepDuration,
		c.evictionsTotal,
		c.sweepErrorsTotal,
		c.httpDuration,
		c.httpRequestsTotal,
		c.findOrCreateTotal,
		c.imageDiscoveryTotal,
	)
}

// NoopCollector is a no-op implementation of Collector for testing.
type NoopCollector struct{}

// NewNoopCollector creates a new no-op collector.
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

// RecordReconcile is a no-op.
func (c *NoopCollector) RecordReconcile(_ context.Context, _ string, _ time.Duration) {}

// RecordReconcileError is a no-op.
func (c *NoopCollector) RecordReconcileError(_ context.Context, _ string) {}

// RecordPodCreated is a no-op.
func (c *NoopCollector) RecordPodCreated(_ context.Context) {}

// RecordTeardown is a no-op.
func (c *NoopCollector) RecordTeardown(_ context.Context, _ string) {}

// RecordWatchRestart is a no-op.
func (c *NoopCollector) RecordWatchRestart(_ context.Context) {}

// RecordWatchEvent is a no-op.
func (c *NoopCollector) RecordWatchEvent(_ context.Context, _ string) {}

// RecordSweep is a no-op.
func (c *NoopCollector) RecordSweep(_ context.Context, _ int, _ time.Duration) {}

// RecordSweepError is a no-op.
func (c *NoopCollector) RecordSweepError(_ context.Context, _ string) {}

// RecordHTTPRequest is a no-op.
func (c *NoopCollector) RecordHTTPRequest(_ context.Context, _, _ string, _ time.Duration) {}

// RecordFindOrCreate is a no-op.
func (c *NoopCollector) RecordFindOrCreate(_ context.Context, _ string) {}

// RecordImageDiscovery is a no-op.
func (c *NoopCollector) RecordImageDiscovery(_ context.Context, _ string) {}
