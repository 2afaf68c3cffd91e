// Package metrics provides Prometheus metrics for the pacer workout cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by round, refresh and baseline metrics.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeCached  = "cached"
	OutcomeEmpty   = "empty"
)

// Manager manages all Prometheus metrics for the cache.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion
	recordsIngested  prometheus.Counter
	recordsDuplicate prometheus.Counter
	recordsRejected  *prometheus.CounterVec
	recordsPruned    prometheus.Counter
	storeRecords     prometheus.Gauge

	// Fetch coordinator
	fetchRounds       *prometheus.CounterVec
	fetchRoundLatency prometheus.Histogram
	fastRefreshes     *prometheus.CounterVec
	fastRefreshSize   prometheus.Histogram

	// Baseline reconciler
	baselineFetches     *prometheus.CounterVec
	baselineAgeSeconds  prometheus.Gauge
	mergeRejectedDeltas prometheus.Counter
	liveDeltas          prometheus.Counter
	goalSignals         prometheus.Counter

	// Leaderboards
	aggregations       *prometheus.CounterVec
	aggregationLatency prometheus.Histogram

	// Subscription bus
	busNotifications prometheus.Counter
	busSubscribers   prometheus.Gauge

	// Background lane
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueue            prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // metrics must exist before any component records
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pacer",
		subsystem:        "cache",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	m.recordsIngested = m.counter("records_ingested_total", "Workout records newly stored in the event store")
	m.recordsDuplicate = m.counter("records_duplicate_total", "Workout records skipped because their id was already stored")
	m.recordsRejected = m.counterVec("records_rejected_total", "Raw records rejected by the normalizer", "reason")
	m.recordsPruned = m.counter("records_pruned_total", "Workout records removed by age-based pruning")
	m.storeRecords = m.gauge("store_records", "Current number of workout records held in memory")

	m.fetchRounds = m.counterVec("fetch_rounds_total", "Batched fetch rounds by round kind and outcome", "round", "outcome")
	m.fetchRoundLatency = m.histogram("fetch_round_latency_milliseconds", "Latency of a single batched fetch round", m.histogramBuckets)
	m.fastRefreshes = m.counterVec("fast_refresh_total", "Fast leaderboard refreshes by outcome", "outcome")
	m.fastRefreshSize = m.histogram("fast_refresh_records", "Records collected by a fast leaderboard refresh",
		[]float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000})

	m.baselineFetches = m.counterVec("baseline_fetch_total", "Baseline snapshot fetch attempts by outcome", "outcome")
	m.baselineAgeSeconds = m.gauge("baseline_age_seconds", "Age of the cached baseline snapshot at last refresh")
	m.mergeRejectedDeltas = m.counter("merge_rejected_deltas_total", "Live deltas dropped by the merge (before cutoff or repeated)")
	m.liveDeltas = m.counter("live_deltas_total", "Live delta records accepted from the actor subscription")
	m.goalSignals = m.counter("goal_signals_total", "Goal-reached signals emitted to the reward collaborator")

	m.aggregations = m.counterVec("aggregations_total", "Leaderboard aggregations by kind", "kind")
	m.aggregationLatency = m.histogram("aggregation_latency_milliseconds", "Leaderboard aggregation latency", m.histogramBuckets)

	m.busNotifications = m.counter("bus_notifications_total", "Change notifications published on the subscription bus")
	m.busSubscribers = m.gauge("bus_subscribers", "Currently registered bus subscribers")

	m.queueSize = m.gauge("task_queue_size", "Current number of queued background tasks")
	m.queueCapacity = m.gauge("task_queue_capacity", "Maximum background task queue capacity")
	m.queueEnqueue = m.counter("task_enqueue_total", "Background tasks accepted by the queue")
	m.queueEnqueueErrors = m.counter("task_enqueue_errors_total", "Background tasks dropped by the queue")
	m.workerActiveCount = m.gauge("task_worker_count", "Background lane workers")
	m.workerProcessingLatency = m.histogram("task_latency_milliseconds", "Background task run latency", m.histogramBuckets)
	m.workerErrors = m.counter("task_errors_total", "Background tasks that returned an error")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_requests_total"),
			Help: "Total number of HTTP requests by endpoint and method", ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
			Help: "HTTP request duration in milliseconds", Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordRecordsIngested adds n newly stored records.
func RecordRecordsIngested(n int) {
	if n > 0 {
		globalManager.recordsIngested.Add(float64(n))
	}
}

// RecordRecordsDuplicate adds n skipped duplicates.
func RecordRecordsDuplicate(n int) {
	if n > 0 {
		globalManager.recordsDuplicate.Add(float64(n))
	}
}

// RecordRecordRejected counts one normalizer rejection.
func RecordRecordRejected(reason string) {
	globalManager.recordsRejected.WithLabelValues(reason).Inc()
}

// RecordRecordsPruned adds n pruned records.
func RecordRecordsPruned(n int) {
	if n > 0 {
		globalManager.recordsPruned.Add(float64(n))
	}
}

// UpdateStoreRecords sets the store size gauge.
func UpdateStoreRecords(n int) {
	globalManager.storeRecords.Set(float64(n))
}

// RecordFetchRound counts one fetch round and its latency.
func RecordFetchRound(round, outcome string, latencyMs float64) {
	globalManager.fetchRounds.WithLabelValues(round, outcome).Inc()
	globalManager.fetchRoundLatency.Observe(latencyMs)
}

// RecordFastRefresh counts one fast refresh.
func RecordFastRefresh(outcome string, records int) {
	globalManager.fastRefreshes.WithLabelValues(outcome).Inc()
	globalManager.fastRefreshSize.Observe(float64(records))
}

// RecordBaselineFetch counts one baseline fetch attempt.
func RecordBaselineFetch(outcome string) {
	globalManager.baselineFetches.WithLabelValues(outcome).Inc()
}

// UpdateBaselineAge sets the baseline age gauge.
func UpdateBaselineAge(age time.Duration) {
	globalManager.baselineAgeSeconds.Set(age.Seconds())
}

// RecordMergeRejectedDeltas adds n deltas dropped by the merge.
func RecordMergeRejectedDeltas(n int) {
	if n > 0 {
		globalManager.mergeRejectedDeltas.Add(float64(n))
	}
}

// RecordLiveDelta counts an accepted live delta.
func RecordLiveDelta() {
	globalManager.liveDeltas.Inc()
}

// RecordGoalSignal counts an emitted goal-reached signal.
func RecordGoalSignal() {
	globalManager.goalSignals.Inc()
}

// RecordAggregation counts one aggregation of the given kind.
func RecordAggregation(kind string, latencyMs float64) {
	globalManager.aggregations.WithLabelValues(kind).Inc()
	globalManager.aggregationLatency.Observe(latencyMs)
}

// RecordBusNotification counts one published notification.
func RecordBusNotification() {
	globalManager.busNotifications.Inc()
}

// UpdateBusSubscribers sets the subscriber gauge.
func UpdateBusSubscribers(n int) {
	globalManager.busSubscribers.Set(float64(n))
}

// UpdateQueueSize sets the current task queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum task queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueEnqueueError increments the dropped task counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the number of background workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records task latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the task error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
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
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
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
