// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolveDuration tracks how long locator resolution takes, by mode and result.
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamtier_resolve_duration_seconds",
		Help:    "Time taken to resolve a watch reference into tier addresses",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15},
	}, []string{"mode", "result"})

	// ResolveSourceTotal counts intermediate document fetches per source.
	ResolveSourceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamtier_resolve_source_total",
		Help: "Intermediate document fetch attempts by source and result",
	}, []string{"source", "result"})
)

// ObserveResolve records one resolve call. result is "ok" or an error kind.
func ObserveResolve(mode, result string, d time.Duration) {
	ResolveDuration.WithLabelValues(mode, result).Observe(d.Seconds())
}

// IncResolveSource records one document fetch attempt.
func IncResolveSource(source string, success bool) {
	ResolveSourceTotal.WithLabelValues(source, resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
