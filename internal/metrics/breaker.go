// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker trip reasons.
const (
	BreakerTripThreshold   = "threshold_exceeded"
	BreakerTripTrialFailed = "half_open_failure"
)

var breakerStates = []string{"closed", "half-open", "open"}

var (
	// breakerState is one-hot per source: exactly one state series is 1.
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamtier_resolver_breaker_state",
		Help: "Resolver source breaker state (1 for the active state, 0 otherwise)",
	}, []string{"source", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamtier_resolver_breaker_trips_total",
		Help: "Resolver source breaker transitions to open",
	}, []string{"source", "reason"})

	breakerRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamtier_resolver_breaker_rejected_total",
		Help: "Lookups short-circuited by an open resolver source breaker",
	}, []string{"source"})
)

// SetBreakerState publishes state as the active breaker state for source.
func SetBreakerState(source, state string) {
	state = normalizeLabel(state, breakerStates...)
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(source, s).Set(v)
	}
}

func RecordBreakerTrip(source, reason string) {
	breakerTrips.WithLabelValues(source, normalizeLabel(reason, BreakerTripThreshold, BreakerTripTrialFailed)).Inc()
}

func IncBreakerRejected(source string) {
	breakerRejected.WithLabelValues(source).Inc()
}
