package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts DMS requests by binding, CMIS action and HTTP status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmis_requests_total",
			Help: "Total number of CMIS requests sent to the DMS",
		},
		[]string{"binding", "action", "status"},
	)

	// RequestDuration measures DMS request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cmis_request_duration_seconds",
			Help:    "CMIS request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"binding", "action"},
	)

	// CacheLookups counts document cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmis_cache_lookups_total",
			Help: "Total number of document cache lookups",
		},
		[]string{"result"},
	)

	// CircuitBreakerState reports the breaker state per binding: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cmis_circuit_breaker_state",
			Help: "State of the DMS circuit breaker",
		},
		[]string{"binding"},
	)
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// ObserveRequest records a finished DMS request. A status of 0 means no
// response was received.
func ObserveRequest(binding, action string, status int, started time.Time) {
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
	}
	RequestsTotal.WithLabelValues(binding, action, label).Inc()
	RequestDuration.WithLabelValues(binding, action).Observe(time.Since(started).Seconds())
}

// ObserveCacheLookup records a document cache lookup.
func ObserveCacheLookup(result string) {
	CacheLookups.WithLabelValues(result).Inc()
}
