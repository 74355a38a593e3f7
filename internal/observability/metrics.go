package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkpost_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// StoreOperationLatency records document store latency by operation.
	StoreOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkpost_store_operation_latency_seconds",
		Help:    "Post document store latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// AuthDecisions counts write authorization outcomes.
	AuthDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkpost_auth_decisions_total",
		Help: "Total number of write authorization decisions",
	}, []string{"method", "outcome"})

	// CacheLookups counts post cache hits and misses.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkpost_cache_lookups_total",
		Help: "Total number of post cache lookups by result",
	}, []string{"result"})

	// UploadBytes observes accepted upload sizes.
	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inkpost_upload_bytes",
		Help:    "Size of accepted image uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})
)

// TrackStore returns a function that records store latency when called (e.g. defer).
func TrackStore(operation string) func() {
	start := time.Now()
	return func() {
		StoreOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthDecision increments the decision counter. An empty method is
// reported as "none".
func RecordAuthDecision(method string, allowed bool) {
	if method == "" {
		method = "none"
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	AuthDecisions.WithLabelValues(method, outcome).Inc()
}
