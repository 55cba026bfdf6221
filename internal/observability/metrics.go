package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	transactionCounter    *prometheus.CounterVec
	compensationCounter   *prometheus.CounterVec
	duplicateCounter      *prometheus.CounterVec
	switchDuration        *prometheus.HistogramVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		transactionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transactions_total",
			Help: "Transaction outcomes by operation type",
		}, []string{"type", "outcome"})

		compensationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compensations_total",
			Help: "Compensating adjustments applied after a downstream failure",
		}, []string{"operation", "result"})

		duplicateCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duplicate_deliveries_total",
			Help: "Redelivered messages answered without a second mutation",
		}, []string{"operation"})

		switchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "switch_request_duration_seconds",
			Help:    "Interbank switch call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"call", "outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			transactionCounter,
			compensationCounter,
			duplicateCounter,
			switchDuration,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTransaction(opType, outcome string) {
	if transactionCounter == nil {
		return
	}
	transactionCounter.WithLabelValues(opType, outcome).Inc()
}

func IncrementCompensation(operation, result string) {
	if compensationCounter == nil {
		return
	}
	compensationCounter.WithLabelValues(operation, result).Inc()
}

func IncrementDuplicateDelivery(operation string) {
	if duplicateCounter == nil {
		return
	}
	duplicateCounter.WithLabelValues(operation).Inc()
}

func ObserveSwitchCall(call, outcome string, duration time.Duration) {
	if switchDuration == nil {
		return
	}
	switchDuration.WithLabelValues(call, outcome).Observe(duration.Seconds())
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
