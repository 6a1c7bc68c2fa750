package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// storeOps counts actions by entity, operation and outcome
	// (ok, not_found, invalid, timeout, error, stale).
	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miele_store_operations_total",
			Help: "Entity store actions by outcome.",
		},
		[]string{"entity", "op", "outcome"},
	)

	// storeLat records accessor round-trip time per action.
	storeLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "miele_store_operation_duration_seconds",
			Help:    "Duration of entity store accessor calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "op"},
	)
)

func init() {
	prometheus.MustRegister(storeOps, storeLat)
}

func (s *Store[P, D, T]) observe(op, result string, start time.Time) {
	storeOps.WithLabelValues(s.cfg.name, op, result).Inc()
	storeLat.WithLabelValues(s.cfg.name, op).Observe(time.Since(start).Seconds())
}
