// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"errors"
	"math"
	"time"

	"github.com/ManuGH/streamtier/internal/metrics"
	"github.com/ManuGH/streamtier/internal/resolver"
	"github.com/ManuGH/streamtier/internal/stream"
)

// Phase is what the playback view shows.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhasePlaying Phase = "playing"
	PhaseErrored Phase = "errored"
)

// User-visible failure reasons.
const (
	ReasonExhausted        = "all streaming sources failed"
	ReasonNoSource         = "the video page could not be reached"
	ReasonNoMedia          = "no playable video was found on the page"
	ReasonResolveTimeout   = "timed out while locating the video"
	ReasonInvalidReference = "the watch link is invalid"
	ReasonUnknown          = "playback could not be started"
)

// State is a snapshot of one playback session.
type State struct {
	Phase               Phase        `json:"phase"`
	Tier                *stream.Tier `json:"tier,omitempty"`
	Reason              string       `json:"reason,omitempty"`
	BufferedPercent     float64      `json:"bufferedPercent"`
	BadgeVisible        bool         `json:"badgeVisible"`
	Title               string       `json:"title"`
	MediaID             string       `json:"mediaId"`
	ResumeOffsetSeconds *float64     `json:"resumeOffsetSeconds,omitempty"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

func loadingState(ref stream.WatchReference) State {
	return State{
		Phase:               PhaseLoading,
		Title:               ref.Title,
		MediaID:             ref.MediaID,
		ResumeOffsetSeconds: ref.ResumeOffsetSeconds,
		UpdatedAt:           time.Now(),
	}
}

// BufferedPercent converts a buffered end and a duration to a percentage in
// [0, 100]. ok is false when duration gives no usable scale.
func BufferedPercent(bufferedEnd, duration float64) (float64, bool) {
	if !(duration > 0) || math.IsInf(duration, 0) || math.IsNaN(bufferedEnd) {
		return 0, false
	}
	pct := bufferedEnd / duration * 100
	return math.Max(0, math.Min(100, pct)), true
}

// ReasonFor maps a resolve failure to the message shown to the viewer.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, resolver.ErrTimeout):
		return ReasonResolveTimeout
	case errors.Is(err, resolver.ErrNoSourceReachable):
		return ReasonNoSource
	case errors.Is(err, resolver.ErrNoMediaFound):
		return ReasonNoMedia
	case errors.Is(err, stream.ErrInvalidReference):
		return ReasonInvalidReference
	default:
		return ReasonUnknown
	}
}

// errorCode is the metrics label for a resolve failure.
func errorCode(err error) string {
	switch {
	case errors.Is(err, resolver.ErrTimeout):
		return metrics.PlaybackCodeTimeout
	case errors.Is(err, resolver.ErrNoSourceReachable):
		return metrics.PlaybackCodeNoSource
	case errors.Is(err, resolver.ErrNoMediaFound):
		return metrics.PlaybackCodeNoMedia
	case errors.Is(err, stream.ErrInvalidReference):
		return metrics.PlaybackCodeInvalidReference
	default:
		return ""
	}
}
