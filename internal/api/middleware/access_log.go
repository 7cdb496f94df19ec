// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	"github.com/ManuGH/streamtier/internal/log"
)

// AccessLog writes one structured log line per request. Health and metrics
// probes are logged at debug level.
func AccessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			logger := log.WithComponentFromContext(r.Context(), "api")
			evt := logger.Info()
			switch {
			case !shouldTrace(r):
				evt = logger.Debug()
			case sw.status >= http.StatusInternalServerError:
				evt = logger.Error()
			case sw.status >= http.StatusBadRequest:
				evt = logger.Warn()
			}

			if traceID, _ := ExtractTraceContext(r); traceID != "" {
				evt = evt.Str("trace_id", traceID)
			}
			evt.
				Str(log.FieldEvent, "http.request").
				Str("method", r.Method).
				Str("route", RoutePattern(r)).
				Int("status", sw.status).
				Int("bytes", sw.bytes).
				Dur(log.FieldDuration, time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Msg("request served")
		})
	}
}
