// SPDX-License-Identifier: MIT

// Package middleware holds the HTTP ingress chain of the playback API.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Ingress selects the optional layers of the ingress chain. Recovery and
// request IDs are always on.
type Ingress struct {
	CORSOrigins []string
	// TraceService names server spans; empty leaves requests untraced.
	TraceService string
	Metrics      bool
	AccessLog    bool
}

// Chain returns the ingress middleware outermost first. Recovery wraps
// everything so a panic in any later layer still gets a JSON 500 carrying
// the request ID.
func (in Ingress) Chain() []func(http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{Recoverer, RequestID, CORS(in.CORSOrigins)}
	if in.TraceService != "" {
		chain = append(chain, OTelHTTP(in.TraceService))
	}
	if in.Metrics {
		chain = append(chain, Metrics())
	}
	if in.AccessLog {
		chain = append(chain, AccessLog())
	}
	return chain
}

// Router returns a chi router with the chain installed. Rate limits belong
// to route groups so probes and scrapes are never throttled.
func (in Ingress) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(in.Chain()...)
	return r
}
