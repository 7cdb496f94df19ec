// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ManuGH/streamtier/internal/hls"
	"github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/metrics"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/rs/zerolog"
)

const (
	kindManifest = "manifest"
	kindMedia    = "media"

	manifestContentType = "application/vnd.apple.mpegurl"
)

// Request headers passed through to the upstream.
var forwardRequestHeaders = []string{
	"Range",
	"If-Range",
	"If-None-Match",
	"If-Modified-Since",
	"Accept",
	"Accept-Language",
	"User-Agent",
}

// Response headers passed back to the client for media bodies.
var forwardResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"ETag",
	"Last-Modified",
	"Cache-Control",
	"Expires",
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, upstream *url.URL, logger zerolog.Logger) {
	ctx := r.Context()
	kind := kindMedia
	if stream.IsAdaptiveAddress(upstream.String()) {
		kind = kindManifest
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, upstream.String(), nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_url", err.Error())
		return
	}
	for _, name := range forwardRequestHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if detached(ctx) {
			return
		}
		metrics.IncProxyUpstream(kind, 0)
		logger.Warn().Err(err).Str(log.FieldEvent, "proxy.upstream_failed").Msg("upstream request failed")
		writeError(w, http.StatusBadGateway, "upstream_unreachable", "upstream request failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if isManifestResponse(upstream, resp) {
		kind = kindManifest
	}
	metrics.IncProxyUpstream(kind, resp.StatusCode)

	if resp.StatusCode >= http.StatusInternalServerError {
		logger.Warn().
			Int("status", resp.StatusCode).
			Str(log.FieldEvent, "proxy.upstream_error").
			Msg("upstream returned server error")
		writeError(w, http.StatusBadGateway, "upstream_error", resp.Status)
		return
	}

	if kind == kindManifest && resp.StatusCode == http.StatusOK && r.Method == http.MethodGet {
		h.serveManifest(w, r, upstream, resp, logger)
		return
	}

	for _, name := range forwardResponseHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil && !detached(ctx) {
		logger.Debug().Err(err).Str(log.FieldEvent, "proxy.copy_aborted").Msg("media copy aborted")
	}
}

// serveManifest rewrites every URI in an upstream playlist so it resolves
// against the upstream address and is fetched through this proxy again.
func (h *Handler) serveManifest(w http.ResponseWriter, r *http.Request, upstream *url.URL, resp *http.Response, logger zerolog.Logger) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes+1))
	if err != nil {
		if detached(r.Context()) {
			return
		}
		writeError(w, http.StatusBadGateway, "upstream_unreachable", "reading upstream manifest failed")
		return
	}
	if len(body) > maxManifestBytes {
		writeError(w, http.StatusBadGateway, "manifest_too_large", "upstream manifest exceeds size limit")
		return
	}

	// Redirects change the base relative entries resolve against.
	base := upstream
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	rewritten, err := hls.Rewrite(string(body), base, h.wrap(h.proxyBase(r)))
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "proxy.rewrite_failed").Msg("manifest rewrite failed")
		writeError(w, http.StatusBadGateway, "invalid_manifest", err.Error())
		return
	}

	w.Header().Set("Content-Type", manifestContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, strings.NewReader(rewritten))
}

func isManifestResponse(upstream *url.URL, resp *http.Response) bool {
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "mpegurl") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(upstream.Path), ".m3u8")
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(errorBody{Error: code, Detail: detail}); err != nil {
		http.Error(w, code, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
