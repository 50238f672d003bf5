// Package metrics provides Prometheus metrics for the evalboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the evalboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Sync metrics, labelled by source key
	syncRuns           *prometheus.CounterVec
	syncRecordsFetched *prometheus.CounterVec
	syncRecordsSkipped *prometheus.CounterVec
	syncFetchRetries   *prometheus.CounterVec
	syncDuration       *prometheus.HistogramVec

	// Snapshot state
	snapshotHighWaterMark *prometheus.GaugeVec
	snapshotRecords       *prometheus.GaugeVec

	// Repository metrics
	repositoryLatency *prometheus.HistogramVec

	// Leaderboard metrics
	leaderboardBuilds       *prometheus.CounterVec
	leaderboardBuildLatency prometheus.Histogram
	leaderboardRows         *prometheus.GaugeVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "evalboard",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.syncRuns = m.counterVec("sync_runs_total",
		"Total number of synchronization runs by outcome", "source", "outcome")
	m.syncRecordsFetched = m.counterVec("sync_records_fetched_total",
		"Total number of records fetched and merged", "source")
	m.syncRecordsSkipped = m.counterVec("sync_records_skipped_total",
		"Total number of records skipped as missing or invalid", "source")
	m.syncFetchRetries = m.counterVec("sync_fetch_retries_total",
		"Total number of record fetch retries", "source")
	m.syncDuration = m.histogramVec("sync_duration_milliseconds",
		"Synchronization run duration in milliseconds", "source")

	m.snapshotHighWaterMark = m.gaugeVec("snapshot_high_water_mark",
		"Remote record count covered by the persisted snapshot", "source")
	m.snapshotRecords = m.gaugeVec("snapshot_records",
		"Number of records held by the persisted snapshot", "source")

	m.repositoryLatency = m.histogramVec("repository_operation_latency_milliseconds",
		"Snapshot store operation latency in milliseconds", "backend", "operation")

	m.leaderboardBuilds = m.counterVec("leaderboard_builds_total",
		"Total number of leaderboard table builds", "source")
	m.leaderboardBuildLatency = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "leaderboard_build_latency_milliseconds",
		Help:        "Leaderboard build latency in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	})
	m.leaderboardRows = m.gaugeVec("leaderboard_rows",
		"Number of rows in the latest leaderboard table", "source")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	auto := promauto.With(m.registry)
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "System memory usage in bytes",
		ConstLabels: m.constLabels,
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: m.constLabels,
	})
}

// RecordSyncRun counts a finished synchronization run.
func RecordSyncRun(source, outcome string) {
	globalManager.syncRuns.WithLabelValues(source, outcome).Inc()
}

// RecordRecordsFetched adds n merged records for source.
func RecordRecordsFetched(source string, n int) {
	globalManager.syncRecordsFetched.WithLabelValues(source).Add(float64(n))
}

// RecordRecordsSkipped adds n skipped records for source.
func RecordRecordsSkipped(source string, n int) {
	globalManager.syncRecordsSkipped.WithLabelValues(source).Add(float64(n))
}

// RecordFetchRetries adds n retried record fetches for source.
func RecordFetchRetries(source string, n int) {
	globalManager.syncFetchRetries.WithLabelValues(source).Add(float64(n))
}

// RecordSyncDuration records a run duration in milliseconds.
func RecordSyncDuration(source string, durationMs float64) {
	globalManager.syncDuration.WithLabelValues(source).Observe(durationMs)
}

// UpdateSnapshot sets the snapshot gauges for source.
func UpdateSnapshot(source string, highWaterMark, records int) {
	globalManager.snapshotHighWaterMark.WithLabelValues(source).Set(float64(highWaterMark))
	globalManager.snapshotRecords.WithLabelValues(source).Set(float64(records))
}

// RecordRepositoryLatency records a snapshot store operation latency.
func RecordRepositoryLatency(backend, operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordLeaderboardBuild counts a table build for source and its latency.
func RecordLeaderboardBuild(source string, latencyMs float64, rows int) {
	globalManager.leaderboardBuilds.WithLabelValues(source).Inc()
	globalManager.leaderboardBuildLatency.Observe(latencyMs)
	globalManager.leaderboardRows.WithLabelValues(source).Set(float64(rows))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
