// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes playback sessions, the backend proxy, health and metrics over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/ManuGH/streamtier/internal/api/middleware"
	"github.com/ManuGH/streamtier/internal/health"
	"github.com/ManuGH/streamtier/internal/session"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sessions is the playback session registry the API drives.
type Sessions interface {
	Create(ref stream.WatchReference, opts session.CreateOptions) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Retry(id string) (session.State, error)
	ReportBuffer(id string, bufferedEnd, duration float64) error
	Dispose(id string) error
}

// Config configures the HTTP surface.
type Config struct {
	// ServiceName names server spans; empty disables tracing middleware.
	ServiceName string
	// RateLimit is API requests per client IP and minute; zero disables it.
	RateLimit   int
	CORSOrigins []string
	// HeartbeatInterval spaces keep-alive comments on event streams.
	HeartbeatInterval time.Duration
}

// Server routes API requests. Create it with New.
type Server struct {
	cfg      Config
	sessions Sessions
	health   *health.Manager
	proxy    http.Handler
	router   chi.Router
}

// New builds the router. proxy may be nil when the built-in proxy is disabled.
func New(cfg Config, sessions Sessions, hm *health.Manager, proxy http.Handler) *Server {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		health:   hm,
		proxy:    proxy,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := middleware.Ingress{
		CORSOrigins:  s.cfg.CORSOrigins,
		TraceService: s.cfg.ServiceName,
		Metrics:      true,
		AccessLog:    true,
	}.Router()

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.PlaybackRateLimit(s.cfg.RateLimit, middleware.ScopeKey(session.ScopeHeader, session.ScopeCookie)))

		r.Route("/api/v1/playback", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/{id}", s.handleGet)
			r.Get("/{id}/events", s.handleEvents)
			r.Post("/{id}/retry", s.handleRetry)
			r.Post("/{id}/buffer", s.handleBuffer)
			r.Delete("/{id}", s.handleDispose)
		})

		if s.proxy != nil {
			r.Method(http.MethodGet, "/proxy", s.proxy)
			r.Method(http.MethodHead, "/proxy", s.proxy)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed")
	})
	return r
}
