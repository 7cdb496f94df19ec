// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package proxy implements the backend proxy tier: GET /proxy?url=<upstream>.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// maxManifestBytes caps how much of an upstream manifest is buffered for rewriting.
const maxManifestBytes = 4 << 20

var (
	errMissingURL   = errors.New("missing url parameter")
	errInvalidURL   = errors.New("url must be an absolute http(s) address")
	errLoopDetected = errors.New("url points back at this proxy")
)

// Config holds the configuration for the backend proxy.
type Config struct {
	// Client performs upstream requests. Nil builds an instrumented client
	// whose response header timeout is Timeout.
	Client  *http.Client
	Timeout time.Duration

	// Rate and Burst pace upstream requests across all callers.
	Rate  float64
	Burst int

	// Base is the public proxy address written into rewritten manifests.
	// Empty derives it from each request.
	Base string

	// ListenAddr lets the proxy refuse upstream addresses that target itself.
	ListenAddr string

	Logger zerolog.Logger
}

// Handler serves the backend proxy tier. It is safe for concurrent use.
type Handler struct {
	client     *http.Client
	limiter    *rate.Limiter
	base       string
	listenPort string
	localHosts map[string]struct{}
	logger     zerolog.Logger
}

// New creates a proxy handler.
func New(cfg Config) *Handler {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: timeout,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConnsPerHost:   16,
			}),
		}
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	host, port := splitListenAddr(cfg.ListenAddr)
	return &Handler{
		client:     client,
		limiter:    rate.NewLimiter(limit, burst),
		base:       cfg.Base,
		listenPort: port,
		localHosts: collectLocalHosts(host),
		logger:     cfg.Logger.With().Str(log.FieldComponent, "proxy").Logger(),
	}
}

// ServeHTTP proxies the upstream named by the url query parameter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed")
		return
	}

	upstream, err := h.upstreamURL(r.URL.Query().Get("url"))
	if err != nil {
		status := http.StatusBadRequest
		code := "invalid_url"
		if errors.Is(err, errLoopDetected) {
			status = http.StatusLoopDetected
			code = "loop_detected"
		}
		writeError(w, status, code, err.Error())
		return
	}

	logger := log.WithContext(r.Context(), h.logger).With().Str(log.FieldUpstream, upstream.Redacted()).Logger()

	if err := h.limiter.Wait(r.Context()); err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, http.StatusTooManyRequests, "rate_limited", "upstream request budget exhausted")
		return
	}

	h.forward(w, r, upstream, logger)
}

// upstreamURL validates the requested upstream address.
func (h *Handler) upstreamURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errInvalidURL
	}
	if h.isSelfURL(u) {
		return nil, errLoopDetected
	}
	return u, nil
}

// proxyBase returns the proxy address rewritten manifest entries point back to.
func (h *Handler) proxyBase(r *http.Request) string {
	if h.base != "" {
		return h.base
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd == "http" || fwd == "https" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.Path
}

func (h *Handler) wrap(base string) func(string) string {
	return func(abs string) string { return stream.WrapProxy(base, abs) }
}

func splitListenAddr(addr string) (string, string) {
	if addr == "" {
		return "", ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", strings.TrimPrefix(addr, ":")
	}
	return host, port
}

func collectLocalHosts(explicitHost string) map[string]struct{} {
	hosts := map[string]struct{}{
		"localhost": {},
		"127.0.0.1": {},
		"::1":       {},
	}

	addHost := func(host string) {
		if host == "" {
			return
		}
		hosts[strings.ToLower(host)] = struct{}{}
	}

	if explicitHost != "" && explicitHost != "0.0.0.0" && explicitHost != "::" {
		addHost(explicitHost)
	}
	if hn, err := os.Hostname(); err == nil {
		addHost(hn)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return hosts
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			switch v := addr.(type) {
			case *net.IPNet:
				addHost(v.IP.String())
			case *net.IPAddr:
				addHost(v.IP.String())
			}
		}
	}
	return hosts
}

// isSelfURL reports whether u targets this proxy's own listener.
func (h *Handler) isSelfURL(u *url.URL) bool {
	if h.listenPort == "" {
		return false
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	if port != h.listenPort {
		return false
	}
	_, ok := h.localHosts[strings.ToLower(u.Hostname())]
	return ok
}

// detached reports whether the client went away, so no response is owed.
func detached(ctx context.Context) bool {
	return ctx.Err() != nil
}
