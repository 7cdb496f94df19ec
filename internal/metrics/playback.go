// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Playback label values.
const (
	PlaybackMediaProgressive = "progressive"
	PlaybackMediaAdaptive    = "adaptive"

	PlaybackTriggerStart = "start"
	PlaybackTriggerRetry = "retry"

	PlaybackOutcomeOK     = "ok"
	PlaybackOutcomeFailed = "failed"

	PlaybackStageResolve = "resolve"
	PlaybackStageCascade = "cascade"

	PlaybackCodeTimeout          = "timeout"
	PlaybackCodeNoSource         = "no_source"
	PlaybackCodeNoMedia          = "no_media"
	PlaybackCodeInvalidReference = "invalid_reference"
	PlaybackCodeExhausted        = "exhausted"

	labelUnknown = "unknown"
)

var (
	playbackStartupSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamtier_playback_startup_seconds",
		Help:    "Time from session start to playing or errored",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 4, 6, 8, 12, 15, 20, 30},
	}, []string{"media", "outcome"})

	playbackStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamtier_playback_start_total",
		Help: "Playback session runs by trigger",
	}, []string{"trigger"})

	playbackErrorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamtier_playback_error_total",
		Help: "Playback errors by stage and code",
	}, []string{"stage", "code"})
)

// IncPlaybackStart counts a session run. trigger is start or retry.
func IncPlaybackStart(trigger string) {
	playbackStartTotal.WithLabelValues(normalizeLabel(trigger, PlaybackTriggerStart, PlaybackTriggerRetry)).Inc()
}

// ObservePlaybackStartup records how long a run took to settle. media is
// unknown when resolution failed.
func ObservePlaybackStartup(media, outcome string, d time.Duration) {
	playbackStartupSeconds.WithLabelValues(
		normalizeLabel(media, PlaybackMediaProgressive, PlaybackMediaAdaptive),
		normalizeLabel(outcome, PlaybackOutcomeOK, PlaybackOutcomeFailed),
	).Observe(d.Seconds())
}

// IncPlaybackError counts a run that ended errored.
func IncPlaybackError(stage, code string) {
	playbackErrorTotal.WithLabelValues(
		normalizeLabel(stage, PlaybackStageResolve, PlaybackStageCascade),
		normalizeLabel(code,
			PlaybackCodeTimeout,
			PlaybackCodeNoSource,
			PlaybackCodeNoMedia,
			PlaybackCodeInvalidReference,
			PlaybackCodeExhausted,
		),
	).Inc()
}

// normalizeLabel keeps label cardinality bounded to the allowed values.
func normalizeLabel(v string, allowed ...string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return labelUnknown
}
