// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"time"

	"github.com/ManuGH/streamtier/internal/log"
	"github.com/go-chi/chi/v5"
)

// handleEvents streams session state changes as server-sent events until
// the client disconnects or the session is disposed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	states, cancel := sess.Subscribe()
	defer cancel()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	logger := log.WithComponentFromContext(log.ContextWithSessionID(r.Context(), sess.ID()), "api")
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
		case st, ok := <-states:
			if !ok {
				_, _ = w.Write([]byte("event: closed\ndata: {}\n\n"))
				_ = rc.Flush()
				return
			}
			frame, err := sseData(st)
			if err != nil {
				logger.Error().Err(err).Str(log.FieldEvent, "api.sse_encode_failed").Msg("encoding state event failed")
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			logger.Debug().Err(err).Str(log.FieldEvent, "api.sse_flush_failed").Msg("event stream flush failed")
			return
		}
	}
}
