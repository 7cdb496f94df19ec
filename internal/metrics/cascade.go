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
	// ProbeDuration tracks per-tier probe latency by engine and result.
	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamtier_probe_duration_seconds",
		Help:    "Time until a tier probe settled",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 4, 6, 8},
	}, []string{"tier", "engine", "result"})

	// CascadeOutcomeTotal counts terminal cascade outcomes.
	CascadeOutcomeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamtier_cascade_outcome_total",
		Help: "Cascade runs by media kind, outcome and winning tier",
	}, []string{"media", "outcome", "tier"})

	// TierCacheOpsTotal counts tier preference cache operations.
	TierCacheOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamtier_tier_cache_ops_total",
		Help: "Tier preference cache operations by op and result",
	}, []string{"op", "result"})

	playbackSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamtier_playback_sessions",
		Help: "Number of live playback sessions",
	})
)

// ObserveProbe records one probe attempt. result is "ok", a failure kind
// such as "timed_out", or "cancelled".
func ObserveProbe(tier, engine, result string, d time.Duration) {
	ProbeDuration.WithLabelValues(tier, engine, result).Observe(d.Seconds())
}

// IncCascadeOutcome records a terminal cascade outcome. tier is empty for
// exhausted or cancelled runs.
func IncCascadeOutcome(media, outcome, tier string) {
	if tier == "" {
		tier = "none"
	}
	CascadeOutcomeTotal.WithLabelValues(media, outcome, tier).Inc()
}

// IncTierCacheOp records a tier cache operation.
func IncTierCacheOp(op, result string) {
	TierCacheOpsTotal.WithLabelValues(op, result).Inc()
}

// SetPlaybackSessions sets the live playback session gauge.
func SetPlaybackSessions(n int) {
	playbackSessions.Set(float64(n))
}
