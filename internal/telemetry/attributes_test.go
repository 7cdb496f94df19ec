// SPDX-License-Identifier: MIT

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}

func TestHTTPAttributes(t *testing.T) {
	got := attrMap(HTTPAttributes("POST", "/api/v1/playback", 201))
	assert.Equal(t, map[string]string{
		HTTPMethodKey:     "POST",
		HTTPRouteKey:      "/api/v1/playback",
		HTTPStatusCodeKey: "201",
	}, got)
}

func TestPlaybackAttributes(t *testing.T) {
	got := attrMap(PlaybackAttributes("s1", "m1", true))
	assert.Equal(t, "s1", got[PlaybackSessionKey])
	assert.Equal(t, "m1", got[PlaybackMediaIDKey])
	assert.Equal(t, "adaptive", got[PlaybackMediaKey])

	got = attrMap(PlaybackAttributes("", "", false))
	assert.Len(t, got, 1)
	assert.Equal(t, "progressive", got[PlaybackMediaKey])
}

func TestProbeAttributes(t *testing.T) {
	got := attrMap(ProbeAttributes("edge_proxy", "adaptive", "timed_out"))
	assert.Equal(t, "edge_proxy", got[TierKey])
	assert.Equal(t, "adaptive", got[ProbeEngineKey])
	assert.Equal(t, "timed_out", got[ProbeResultKey])
}

func TestErrorAttributes(t *testing.T) {
	got := attrMap(ErrorAttributes(nil, "no_media_found"))
	assert.Equal(t, "true", got[ErrorKey])
	assert.Equal(t, "no_media_found", got[ErrorTypeKey])
}
