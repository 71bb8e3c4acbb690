// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for Operations.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeRejected  = "rejected"
	OutcomeRetryable = "retryable"
)

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmaster_task_operations_total",
			Help: "Task service operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskmaster_task_operation_duration_seconds",
			Help:    "Task service operation latency, including lock wait",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	CompactionWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskmaster_compaction_writes_total",
			Help: "Order values rewritten by partition compaction",
		},
	)
	ReorderSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskmaster_reorder_skipped_total",
			Help: "Bulk reorder items that matched no owned task",
		},
	)
	ReorderRepaired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskmaster_reorder_repaired_partitions_total",
			Help: "Partitions compacted after a bulk reorder left them non-contiguous",
		},
	)
	LockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskmaster_partition_lock_wait_seconds",
			Help:    "Time spent acquiring partition locks",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskmaster_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(Operations)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(CompactionWrites)
	prometheus.MustRegister(ReorderSkipped)
	prometheus.MustRegister(ReorderRepaired)
	prometheus.MustRegister(LockWait)
	prometheus.MustRegister(HTTPRequests)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observe records one service operation.
func Observe(operation, outcome string, started time.Time) {
	Operations.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
