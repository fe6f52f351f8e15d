// Package metrics provides Prometheus metrics for the rollbook attendance
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the rollbook service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion metrics
	observationsIngested  prometheus.Counter
	observationsMalformed prometheus.Counter
	pendingObservations   prometheus.Gauge

	// Buffer metrics
	bufferFlushes   prometheus.Counter
	bufferFlushSize prometheus.Histogram

	// Session metrics
	uniqueSubjects        prometheus.Gauge
	sessionsStarted       prometheus.Counter
	sessionsCommitted     prometheus.Counter
	sessionCommitFailures prometheus.Counter
	sessionDuration       prometheus.Histogram

	// Persistence metrics
	rowsInserted         prometheus.Counter
	enrollmentViolations prometheus.Counter

	// History read metrics
	historyQueries      prometheus.Counter
	historyQueryLatency prometheus.Histogram

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rollbook",
		subsystem:        "attendance",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.observationsIngested = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observations_ingested_total",
		Help:      "Total number of detection observations accepted for buffering.",
	})
	m.observationsMalformed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observations_malformed_total",
		Help:      "Total number of observations dropped for missing a subject reference.",
	})
	m.pendingObservations = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pending_observations",
		Help:      "Number of observations waiting for the next throttled drain.",
	})
	m.bufferFlushes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_flushes_total",
		Help:      "Total number of throttled buffer drains applied to the resolver.",
	})
	m.bufferFlushSize = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_flush_size",
		Help:      "Number of events per drained batch.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})
	m.uniqueSubjects = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unique_subjects",
		Help:      "Distinct subjects seen by the resolver in the current session.",
	})
	m.sessionsStarted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_started_total",
		Help:      "Total number of recording sessions started.",
	})
	m.sessionsCommitted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_committed_total",
		Help:      "Total number of sessions whose batch committed successfully.",
	})
	m.sessionCommitFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_commit_failures_total",
		Help:      "Total number of session batches aborted by validation or storage faults.",
	})
	m.sessionDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_duration_seconds",
		Help:      "Elapsed session time at stop.",
		Buckets:   []float64{30, 60, 300, 600, 1800, 3600, 7200},
	})
	m.rowsInserted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_inserted_total",
		Help:      "Total number of attendance rows committed.",
	})
	m.enrollmentViolations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "enrollment_violations_total",
		Help:      "Total number of batches rejected for a missing enrollment.",
	})
	m.historyQueries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_queries_total",
		Help:      "Total number of history read queries served.",
	})
	m.historyQueryLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_query_latency_ms",
		Help:      "History query latency in milliseconds.",
		Buckets:   m.histogramBuckets,
	})
	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request duration in milliseconds.",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByComponent = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "errors",
		Name:      "by_component_total",
		Help:      "Errors by component and type.",
	}, []string{"component", "error_type"})
	m.systemMemoryUsage = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current allocated memory in bytes.",
	})
	m.systemGoroutineCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutine_count",
		Help:      "Current number of goroutines.",
	})
}

// RecordObservationsIngested increments the accepted-observation counter.
func RecordObservationsIngested(n int) {
	globalManager.observationsIngested.Add(float64(n))
}

// RecordObservationMalformed increments the dropped-observation counter.
func RecordObservationMalformed() {
	globalManager.observationsMalformed.Inc()
}

// UpdatePendingObservations sets the throttle queue depth gauge.
func UpdatePendingObservations(n int) {
	globalManager.pendingObservations.Set(float64(n))
}

// RecordBufferFlush records one drained batch and its size.
func RecordBufferFlush(size int) {
	globalManager.bufferFlushes.Inc()
	globalManager.bufferFlushSize.Observe(float64(size))
}

// UpdateUniqueSubjects sets the distinct-subject gauge.
func UpdateUniqueSubjects(n int) {
	globalManager.uniqueSubjects.Set(float64(n))
}

// RecordSessionStarted increments the session counter.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
}

// RecordSessionCommitted records a successful session commit.
func RecordSessionCommitted(rows int) {
	globalManager.sessionsCommitted.Inc()
	globalManager.rowsInserted.Add(float64(rows))
}

// RecordSessionCommitFailure records an aborted session batch.
func RecordSessionCommitFailure() {
	globalManager.sessionCommitFailures.Inc()
}

// ObserveSessionDuration records the elapsed time of a finished session.
func ObserveSessionDuration(seconds float64) {
	globalManager.sessionDuration.Observe(seconds)
}

// RecordRowsInserted adds committed attendance rows.
func RecordRowsInserted(n int) {
	globalManager.rowsInserted.Add(float64(n))
}

// RecordEnrollmentViolation increments the rejected-batch counter.
func RecordEnrollmentViolation() {
	globalManager.enrollmentViolations.Inc()
}

// RecordHistoryQuery increments the history query counter.
func RecordHistoryQuery() {
	globalManager.historyQueries.Inc()
}

// RecordHistoryQueryLatency records one history query's latency.
func RecordHistoryQueryLatency(latencyMs float64) {
	globalManager.historyQueryLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an HTTP request's duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated-memory gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry backing the global
// manager, for serving via promhttp.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
