// Package metrics provides Prometheus metrics for the greenalloc service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Allocation engine
	allocationsComputed  prometheus.Counter
	allocationErrors     *prometheus.CounterVec
	allocationEqualSplit prometheus.Counter
	allocationLatency    prometheus.Histogram
	allocationProjects   prometheus.Histogram

	// Extraction
	extractionDocuments *prometheus.CounterVec
	extractionLatency   prometheus.Histogram

	// Batches
	batchesCreated   prometheus.Counter
	batchesDuplicate prometheus.Counter
	batchesCompleted *prometheus.CounterVec
	batchesStored    prometheus.Gauge

	// Job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	queueWait          prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerBusy              prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level recorders

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "greenalloc",
		subsystem:        "allocator",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.allocationsComputed = m.counter("allocations_computed_total", "Total number of successful allocation runs")
	m.allocationErrors = m.counterVec("allocation_errors_total", "Allocation runs rejected, by reason", "reason")
	m.allocationEqualSplit = m.counter("allocation_equal_split_total", "Allocation runs that fell back to an equal split because scores summed to zero")
	m.allocationLatency = m.histogram("allocation_latency_milliseconds", "Allocation engine latency in milliseconds", m.histogramBuckets)
	m.allocationProjects = m.histogram("allocation_projects", "Number of projects per allocation run", []float64{0, 1, 2, 5, 10, 25, 50, 100, 250})

	m.extractionDocuments = m.counterVec("extraction_documents_total", "Documents seen by the extractor, by outcome", "outcome")
	m.extractionLatency = m.histogram("extraction_latency_milliseconds", "Batch extraction latency in milliseconds", []float64{1, 5, 10, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000})

	m.batchesCreated = m.counter("batches_created_total", "Total number of upload batches accepted")
	m.batchesDuplicate = m.counter("batches_duplicate_total", "Uploads answered from an existing batch via their upload id")
	m.batchesCompleted = m.counterVec("batches_completed_total", "Batches that reached a terminal status", "status")
	m.batchesStored = m.gauge("batches_stored", "Batches currently held in memory")

	m.queueSize = m.gauge("queue_size", "Current number of queued extraction jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues, by reason", "reason")
	m.queueWait = m.histogram("queue_wait_milliseconds", "Time a job spent queued before a worker picked it up", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Configured number of extraction workers")
	m.workerBusy = m.gauge("worker_busy", "Workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker errors")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Allocation engine.

// RecordAllocation records a successful allocation run.
func RecordAllocation(projects int, latencyMs float64, equalSplit bool) {
	globalManager.allocationsComputed.Inc()
	globalManager.allocationProjects.Observe(float64(projects))
	globalManager.allocationLatency.Observe(latencyMs)
	if equalSplit {
		globalManager.allocationEqualSplit.Inc()
	}
}

// RecordAllocationError records a rejected allocation run.
func RecordAllocationError(reason string) {
	globalManager.allocationErrors.WithLabelValues(reason).Inc()
}

// Extraction.

// RecordExtraction records one batch extraction and its per-document outcomes.
func RecordExtraction(latencyMs float64, succeeded, failed int) {
	globalManager.extractionLatency.Observe(latencyMs)
	globalManager.extractionDocuments.WithLabelValues("extracted").Add(float64(succeeded))
	globalManager.extractionDocuments.WithLabelValues("failed").Add(float64(failed))
}

// Batches.

// RecordBatchCreated increments the accepted batches counter.
func RecordBatchCreated() {
	globalManager.batchesCreated.Inc()
}

// RecordBatchDuplicate increments the duplicate upload counter.
func RecordBatchDuplicate() {
	globalManager.batchesDuplicate.Inc()
}

// RecordBatchCompleted counts a batch reaching a terminal status.
func RecordBatchCompleted(status string) {
	globalManager.batchesCompleted.WithLabelValues(status).Inc()
}

// UpdateBatchesStored sets the number of batches held in memory.
func UpdateBatchesStored(count int) {
	globalManager.batchesStored.Set(float64(count))
}

// Job queue.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size and derived utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter and records queue wait.
func RecordQueueDequeue(waitMs float64) {
	globalManager.queueDequeued.Inc()
	globalManager.queueWait.Observe(waitMs)
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
	globalManager.errorsByComponent.WithLabelValues("queue", reason).Inc()
}

// Workers.

// UpdateWorkerCount sets the configured number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// WorkerBusy marks a worker as busy (+1) or idle (-1).
func WorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError(errorType string) {
	globalManager.workerErrors.Inc()
	globalManager.errorsByComponent.WithLabelValues("worker", errorType).Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the heap bytes allocated.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
