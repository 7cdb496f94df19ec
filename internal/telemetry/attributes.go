// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by resolver, cascade and API spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	PlaybackSessionKey = "playback.session_id"
	PlaybackMediaIDKey = "playback.media_id"
	PlaybackMediaKey   = "playback.media" // adaptive or progressive

	ResolveModeKey   = "resolve.mode" // document or passthrough
	ResolveSourceKey = "resolve.source"

	TierKey         = "cascade.tier"
	ProbeEngineKey  = "probe.engine"
	ProbeResultKey  = "probe.result"
	CascadeStateKey = "cascade.state"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PlaybackAttributes describes one playback session. Empty values are skipped.
func PlaybackAttributes(sessionID, mediaID string, adaptive bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(PlaybackSessionKey, sessionID))
	}
	if mediaID != "" {
		attrs = append(attrs, attribute.String(PlaybackMediaIDKey, mediaID))
	}
	return append(attrs, attribute.String(PlaybackMediaKey, MediaKind(adaptive)))
}

// ProbeAttributes describes a single tier attempt.
func ProbeAttributes(tier, engine, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TierKey, tier),
		attribute.String(ProbeEngineKey, engine),
		attribute.String(ProbeResultKey, result),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// MediaKind returns the label used for adaptive and progressive media.
func MediaKind(adaptive bool) string {
	if adaptive {
		return "adaptive"
	}
	return "progressive"
}
