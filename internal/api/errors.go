// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/session"
	"github.com/ManuGH/streamtier/internal/stream"
)

// Error codes returned in the "error" field.
const (
	CodeInvalidReference = "invalid_reference"
	CodeInvalidBody      = "invalid_body"
	CodeNotFound         = "not_found"
	CodeTooManySessions  = "too_many_sessions"
	CodeShuttingDown     = "shutting_down"
	CodeInternal         = "internal_error"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response with a stable code and a human detail.
func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Error: code, Detail: detail})
}

// writeSessionError maps session and reference errors to HTTP responses.
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, stream.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, CodeInvalidReference, err.Error())
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "playback session not found")
	case errors.Is(err, session.ErrTooMany):
		writeError(w, http.StatusServiceUnavailable, CodeTooManySessions, err.Error())
	case errors.Is(err, session.ErrManagerDone):
		writeError(w, http.StatusServiceUnavailable, CodeShuttingDown, "server is shutting down")
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.unhandled_error").
			Msg("unhandled playback error")
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
