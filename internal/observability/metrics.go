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
	idempotencyCounter    *prometheus.CounterVec
	compensationCounter   *prometheus.CounterVec
	transferCounter       *prometheus.CounterVec
	outboxBacklogGauge    prometheus.Gauge
	outboxDeliveryCounter *prometheus.CounterVec
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

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency resolution outcomes",
		}, []string{"outcome"})

		compensationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coordinator_compensations_total",
			Help: "Saga compensation attempts and failures per step",
		}, []string{"step", "result"})

		transferCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_transitions_total",
			Help: "Transfer state machine transitions",
		}, []string{"transition"})

		outboxBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_unprocessed_events",
			Help: "Current number of undelivered outbox events",
		})

		outboxDeliveryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_deliveries_total",
			Help: "Outbox dispatcher delivery outcomes",
		}, []string{"result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker poll cycles",
		}, []string{"worker"})

		prometheus.MustRegister(
			httpDurationHistogram,
			idempotencyCounter,
			compensationCounter,
			transferCounter,
			outboxBacklogGauge,
			outboxDeliveryCounter,
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

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementCompensation(step, result string) {
	if compensationCounter == nil {
		return
	}
	compensationCounter.WithLabelValues(step, result).Inc()
}

func IncrementTransferTransition(transition string) {
	if transferCounter == nil {
		return
	}
	transferCounter.WithLabelValues(transition).Inc()
}

func SetOutboxBacklog(size int64) {
	if outboxBacklogGauge == nil {
		return
	}
	outboxBacklogGauge.Set(float64(size))
}

func IncrementOutboxDelivery(result string) {
	if outboxDeliveryCounter == nil {
		return
	}
	outboxDeliveryCounter.WithLabelValues(result).Inc()
}

func IncrementWorkerRun(worker string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker).Inc()
}
