// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/session"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Query parameters describing the requesting playback view.
const (
	ParamNativeHLS      = "native_hls"
	ParamAdaptiveClient = "adaptive_client"
)

const maxBufferBody = 4 << 10

// CreateResponse is returned by POST /api/v1/playback.
type CreateResponse struct {
	ID    string        `json:"id"`
	State session.State `json:"state"`
}

// BufferReport is the body of POST /api/v1/playback/{id}/buffer.
type BufferReport struct {
	BufferedEnd float64 `json:"bufferedEnd"`
	Duration    float64 `json:"duration"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref, err := stream.ReferenceFromQuery(q)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	opts := session.CreateOptions{
		Scope:         scopeFor(w, r),
		NativeHLS:     flag(q.Get(ParamNativeHLS)),
		DisableClient: q.Get(ParamAdaptiveClient) == "0",
	}
	sess, err := s.sessions.Create(ref, opts)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	ctx := log.ContextWithScope(log.ContextWithSessionID(r.Context(), sess.ID()), opts.Scope)
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Debug().
		Str(log.FieldEvent, "api.playback_created").
		Bool("native_hls", opts.NativeHLS).
		Bool("adaptive_client", !opts.DisableClient).
		Msg("playback requested")

	w.Header().Set("Location", "/api/v1/playback/"+sess.ID())
	writeJSON(w, http.StatusCreated, CreateResponse{ID: sess.ID(), State: sess.State()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Retry(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

func (s *Server) handleBuffer(w http.ResponseWriter, r *http.Request) {
	var report BufferReport
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBufferBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, err.Error())
		return
	}
	if err := s.sessions.ReportBuffer(chi.URLParam(r, "id"), report.BufferedEnd, report.Duration); err != nil {
		writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDispose(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Dispose(chi.URLParam(r, "id")); err != nil {
		writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scopeFor returns the browsing-session identifier. It is taken from the
// X-Session-ID header, then the session cookie; a new one is issued as a
// cookie when neither is present.
func scopeFor(w http.ResponseWriter, r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(session.ScopeHeader)); v != "" {
		return v
	}
	if c, err := r.Cookie(session.ScopeCookie); err == nil && c.Value != "" {
		return c.Value
	}
	scope := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     session.ScopeCookie,
		Value:    scope,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return scope
}

func flag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func sseData(st session.State) ([]byte, error) {
	body, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: state\ndata: %s\n\n", body), nil
}
