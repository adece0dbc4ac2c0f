// Package metrics provides Prometheus metrics for the fleetready pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Ingestion
	recordsIngested   *prometheus.CounterVec
	recordsRejected   *prometheus.CounterVec
	recordsDuplicate  prometheus.Counter
	recordsOutOfOrder prometheus.Counter
	batchesProcessed  *prometheus.CounterVec
	batchLatency      prometheus.Histogram
	normalizeLatency  prometheus.Histogram

	// Merge
	eventsCreated     prometheus.Counter
	eventsMerged      prometheus.Counter
	fieldConflicts    *prometheus.CounterVec
	recordsQuarantine prometheus.Counter

	// Scoring
	scoresComputed   prometheus.Counter
	scoresUnchanged  prometheus.Counter
	scoringLatency   prometheus.Histogram
	scoringErrors    prometheus.Counter
	fleetMeanScore   prometheus.Gauge
	shipsTracked     prometheus.Gauge
	openIssues       prometheus.Gauge
	persistenceError prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryTxLatency    prometheus.Histogram
	repositoryQueryLatency prometheus.Histogram
	boardRebuildDuration   prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Collaborators
	vendorPulls    *prometheus.CounterVec
	triggerRuns    *prometheus.CounterVec
	secretRotation prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// Configure rebuilds the global manager on a fresh registry. It must run
// before the registry is served and before any metric is recorded.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithRegistry(reg))...)
	customRegistry = reg
}

// Enabled reports whether the global manager exports its series.
func Enabled() bool { return globalManager.enabled }

// RefreshInterval is the period of the gauge updaters.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fleetready",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		// Collectors still need a home; this one is never gathered.
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

// Enabled reports whether m exports its series.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is the period at which gauges derived from polling are refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	b := m.histogramBuckets

	m.recordsIngested = m.counterVec("records_ingested_total", "Vendor records accepted after normalization", "source", "format")
	m.recordsRejected = m.counterVec("records_rejected_total", "Vendor records rejected by the normalizer", "reason")
	m.recordsDuplicate = m.counter("records_duplicate_total", "Vendor records skipped because they were already ingested")
	m.recordsOutOfOrder = m.counter("records_out_of_order_total", "Records whose timestamp regressed within a single source feed")
	m.batchesProcessed = m.counterVec("batches_processed_total", "Batches processed by outcome", "outcome")
	m.batchLatency = m.histogram("batch_latency_milliseconds", "End-to-end batch processing latency in milliseconds", b)
	m.normalizeLatency = m.histogram("normalize_latency_milliseconds", "Batch normalization latency in milliseconds", b)

	m.eventsCreated = m.counter("events_created_total", "Maintenance events created by the merge engine")
	m.eventsMerged = m.counter("events_merged_total", "Records merged into an existing maintenance event")
	m.fieldConflicts = m.counterVec("field_conflicts_total", "Field discrepancies resolved during merge", "field")
	m.recordsQuarantine = m.counter("records_quarantined_total", "Records routed to manual review")

	m.scoresComputed = m.counter("scores_computed_total", "Compliance scores written to history")
	m.scoresUnchanged = m.counter("scores_unchanged_total", "Compliance recomputations that matched the latest score")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Compliance scoring latency in milliseconds", b)
	m.scoringErrors = m.counter("scoring_errors_total", "Compliance scoring failures")
	m.fleetMeanScore = m.gauge("fleet_mean_score", "Mean of the latest compliance score across ships")
	m.shipsTracked = m.gauge("ships_tracked", "Ships on the readiness board")
	m.openIssues = m.gauge("open_issues", "Open compliance issues across the fleet")
	m.persistenceError = m.counter("persistence_errors_total", "Batches aborted by a storage failure")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", Buckets: b, ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.repositoryTxLatency = m.histogram("repository_tx_latency_milliseconds", "Batch transaction latency in milliseconds", b)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Repository query latency in milliseconds", b)
	m.boardRebuildDuration = m.histogram("board_rebuild_duration_milliseconds", "Readiness board snapshot rebuild duration in milliseconds", b)

	m.queueSize = m.gauge("queue_size", "Current number of queued batches")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of batches enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of batches dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", b)

	m.workerCount = m.gauge("worker_count", "Number of ingestion workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker batch latency in milliseconds", b)
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker errors")

	m.vendorPulls = m.counterVec("vendor_pulls_total", "Vendor API pulls by vendor and outcome", "vendor", "outcome")
	m.triggerRuns = m.counterVec("trigger_runs_total", "Scheduled job runs by job and outcome", "job", "outcome")
	m.secretRotation = m.counter("secret_rotations_total", "Secret store reloads")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Ingestion.

// RecordRecordIngested counts an accepted vendor record.
func RecordRecordIngested(source, format string) {
	globalManager.recordsIngested.WithLabelValues(source, format).Inc()
}

// RecordRecordRejected counts a record the normalizer refused.
func RecordRecordRejected(reason string) {
	globalManager.recordsRejected.WithLabelValues(reason).Inc()
}

// RecordRecordDuplicate counts a re-ingested vendor record.
func RecordRecordDuplicate() { globalManager.recordsDuplicate.Inc() }

// RecordRecordOutOfOrder counts a timestamp regression within a feed.
func RecordRecordOutOfOrder() { globalManager.recordsOutOfOrder.Inc() }

// RecordBatchProcessed counts a batch by outcome ("ok", "persistence_error", ...).
func RecordBatchProcessed(outcome string) {
	globalManager.batchesProcessed.WithLabelValues(outcome).Inc()
}

// RecordBatchLatency records end-to-end batch latency.
func RecordBatchLatency(ms float64) { globalManager.batchLatency.Observe(ms) }

// RecordNormalizeLatency records batch normalization latency.
func RecordNormalizeLatency(ms float64) { globalManager.normalizeLatency.Observe(ms) }

// Merge.

// RecordEventCreated counts a new maintenance event.
func RecordEventCreated() { globalManager.eventsCreated.Inc() }

// RecordEventMerged counts a record folded into an existing event.
func RecordEventMerged() { globalManager.eventsMerged.Inc() }

// RecordFieldConflict counts a resolved field discrepancy.
func RecordFieldConflict(field string) {
	globalManager.fieldConflicts.WithLabelValues(field).Inc()
}

// RecordQuarantined counts a record routed to manual review.
func RecordQuarantined() { globalManager.recordsQuarantine.Inc() }

// Scoring.

// RecordScoreComputed counts a score written to history.
func RecordScoreComputed() { globalManager.scoresComputed.Inc() }

// RecordScoreUnchanged counts an idempotent recompute.
func RecordScoreUnchanged() { globalManager.scoresUnchanged.Inc() }

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(ms float64) { globalManager.scoringLatency.Observe(ms) }

// RecordScoringError counts a scoring failure.
func RecordScoringError() { globalManager.scoringErrors.Inc() }

// UpdateFleetMeanScore sets the fleet mean score.
func UpdateFleetMeanScore(score float64) { globalManager.fleetMeanScore.Set(score) }

// UpdateShipsTracked sets the number of ships on the board.
func UpdateShipsTracked(n int) { globalManager.shipsTracked.Set(float64(n)) }

// UpdateOpenIssues sets the number of open compliance issues.
func UpdateOpenIssues(n int) { globalManager.openIssues.Set(float64(n)) }

// RecordPersistenceError counts an aborted batch.
func RecordPersistenceError() { globalManager.persistenceError.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository.

// RecordRepositoryTxLatency records a batch transaction latency.
func RecordRepositoryTxLatency(ms float64) { globalManager.repositoryTxLatency.Observe(ms) }

// RecordRepositoryQueryLatency records repository query latency.
func RecordRepositoryQueryLatency(ms float64) { globalManager.repositoryQueryLatency.Observe(ms) }

// RecordBoardRebuildDuration records a readiness board snapshot rebuild.
func RecordBoardRebuildDuration(ms float64) { globalManager.boardRebuildDuration.Observe(ms) }

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(ms float64) { globalManager.queueProcessingLatency.Observe(ms) }

// Workers.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Collaborators.

// RecordVendorPull counts a vendor API pull.
func RecordVendorPull(vendor, outcome string) {
	globalManager.vendorPulls.WithLabelValues(vendor, outcome).Inc()
}

// RecordTriggerRun counts a scheduled job run.
func RecordTriggerRun(job, outcome string) {
	globalManager.triggerRuns.WithLabelValues(job, outcome).Inc()
}

// RecordSecretRotation counts a secret store reload.
func RecordSecretRotation() { globalManager.secretRotation.Inc() }

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
