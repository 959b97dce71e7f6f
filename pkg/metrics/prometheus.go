// Package metrics provides Prometheus metrics for the arbiter evaluation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the arbiter service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	rewardBuckets    []float64
	registry         prometheus.Registerer

	// Judgment metrics - the core business signal
	judgmentsTotal    *prometheus.CounterVec
	judgmentFailures  *prometheus.CounterVec
	evaluationLatency prometheus.Histogram

	// Reward metrics
	rewardsGranted prometheus.Counter
	rewardXP       prometheus.Histogram
	ledgerCalls    prometheus.Counter
	ledgerErrors   prometheus.Counter

	// Store metrics
	storeConflicts prometheus.Counter

	// Dispatch metrics - best-effort side-effect queue
	dispatchQueueSize     prometheus.Gauge
	dispatchQueueCapacity prometheus.Gauge
	dispatchTasks         *prometheus.CounterVec
	dispatchFailures      *prometheus.CounterVec
	workerCount           prometheus.Gauge

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "arbiter",
		subsystem:        "evaluation",
		histogramBuckets: prometheus.DefBuckets,
		rewardBuckets:    []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.judgmentsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "judgments_total",
			Help:      "Total number of accepted judgments by decision and resulting status",
		},
		[]string{"decision", "outcome"},
	)

	m.judgmentFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "judgment_failures_total",
			Help:      "Total number of rejected judgment attempts by failure reason",
		},
		[]string{"reason"},
	)

	m.evaluationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "judge_latency_milliseconds",
		Help:      "Histogram of end-to-end judgment handling latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.rewardsGranted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rewards_granted_total",
		Help:      "Total number of reward applications (one per approved action)",
	})

	m.rewardXP = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reward_xp",
		Help:      "Distribution of awarded XP amounts",
		Buckets:   m.rewardBuckets,
	})

	m.ledgerCalls = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_calls_total",
		Help:      "Total number of reward-ledger increment calls",
	})

	m.ledgerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_errors_total",
		Help:      "Total number of failed reward-ledger increment calls",
	})

	m.storeConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_slot_conflicts_total",
		Help:      "Total number of duplicate evaluation-slot inserts resolved by re-reading",
	})

	m.dispatchQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_queue_size",
		Help:      "Current size of the side-effect dispatch queue (backlog indicator)",
	})

	m.dispatchQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_queue_capacity",
		Help:      "Configured capacity of the side-effect dispatch queue",
	})

	m.dispatchTasks = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "dispatch_tasks_total",
			Help:      "Total number of dispatched side-effect tasks by kind",
		},
		[]string{"kind"},
	)

	m.dispatchFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "dispatch_failures_total",
			Help:      "Total number of failed side-effect tasks by kind (logged and swallowed)",
		},
		[]string{"kind"},
	)

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of dispatch workers",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current allocated memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Histogram of GC pause times in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// RecordJudgment increments the judgment counter for a decision/outcome pair.
func RecordJudgment(decision, outcome string) {
	globalManager.judgmentsTotal.WithLabelValues(decision, outcome).Inc()
}

// RecordJudgmentFailure increments the failure counter for a reason.
func RecordJudgmentFailure(reason string) {
	globalManager.judgmentFailures.WithLabelValues(reason).Inc()
}

// RecordJudgeLatency records end-to-end judgment handling latency.
func RecordJudgeLatency(latencyMs float64) {
	globalManager.evaluationLatency.Observe(latencyMs)
}

// RecordReward records a granted reward and its XP amount.
func RecordReward(xp int) {
	globalManager.rewardsGranted.Inc()
	globalManager.rewardXP.Observe(float64(xp))
}

// RecordLedgerCall increments the ledger-call counter.
func RecordLedgerCall() {
	globalManager.ledgerCalls.Inc()
}

// RecordLedgerError increments the ledger-error counter.
func RecordLedgerError() {
	globalManager.ledgerErrors.Inc()
}

// RecordStoreConflict increments the duplicate-slot conflict counter.
func RecordStoreConflict() {
	globalManager.storeConflicts.Inc()
}

// UpdateDispatchQueueSize updates the dispatch queue size gauge.
func UpdateDispatchQueueSize(size int) {
	globalManager.dispatchQueueSize.Set(float64(size))
}

// UpdateDispatchQueueCapacity updates the dispatch queue capacity gauge.
func UpdateDispatchQueueCapacity(capacity int) {
	globalManager.dispatchQueueCapacity.Set(float64(capacity))
}

// RecordDispatchTask increments the dispatched-task counter for a kind.
func RecordDispatchTask(kind string) {
	globalManager.dispatchTasks.WithLabelValues(kind).Inc()
}

// RecordDispatchFailure increments the failed-task counter for a kind.
func RecordDispatchFailure(kind string) {
	globalManager.dispatchFailures.WithLabelValues(kind).Inc()
}

// UpdateWorkerCount updates the dispatch worker gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage updates the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause observation.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
