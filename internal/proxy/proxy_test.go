// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=1280x720
https://cdn.other.example/high/index.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-KEY:METHOD=AES-128,URI="keys/k1.bin"
#EXTINF:6.0,
seg-0.ts
#EXTINF:6.0,
/abs/seg-1.ts
#EXT-X-ENDLIST
`

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/media/movie.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("X-Upstream-Secret", "leak")
		http.ServeContent(w, r, "movie.mp4", time.Unix(0, 0), strings.NewReader("0123456789abcdef"))
	})
	mux.HandleFunc("/hls/master.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = io.WriteString(w, masterPlaylist)
	})
	mux.HandleFunc("/hls/low/index.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		// Wrong content type; the extension still marks it as a manifest.
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, mediaPlaylist)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/missing.mp4", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newHandler(cfg Config) *Handler {
	cfg.Logger = zerolog.Nop()
	if cfg.Client == nil {
		cfg.Client = &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	}
	return New(cfg)
}

func proxyRequest(method, upstream string) *http.Request {
	return httptest.NewRequest(method, "http://streamtier.test/proxy?url="+url.QueryEscape(upstream), nil)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandler_MediaPassthroughWithRange(t *testing.T) {
	up := newUpstream(t)
	h := newHandler(Config{})

	req := proxyRequest(http.MethodGet, up.URL+"/media/movie.mp4")
	req.Header.Set("Range", "bytes=4-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "4567", rec.Body.String())
	assert.Equal(t, "bytes 4-7/16", rec.Header().Get("Content-Range"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Empty(t, rec.Header().Get("X-Upstream-Secret"))
}

func TestHandler_Head(t *testing.T) {
	up := newUpstream(t)
	h := newHandler(Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, proxyRequest(http.MethodHead, up.URL+"/media/movie.mp4"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "16", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.String())
}

func TestHandler_RewritesMasterManifest(t *testing.T) {
	up := newUpstream(t)
	h := newHandler(Config{Base: "https://edge.example/proxy"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, proxyRequest(http.MethodGet, up.URL+"/hls/master.m3u8"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, manifestContentType, rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, stream.WrapProxy("https://edge.example/proxy", up.URL+"/hls/low/index.m3u8"))
	assert.Contains(t, body, stream.WrapProxy("https://edge.example/proxy", "https://cdn.other.example/high/index.m3u8"))
	assert.Contains(t, body, "#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360")
}

func TestHandler_RewritesMediaManifestAgainstRequestBase(t *testing.T) {
	up := newUpstream(t)
	h := newHandler(Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, proxyRequest(http.MethodGet, up.URL+"/hls/low/index.m3u8"))

	require.Equal(t, http.StatusOK, rec.Code)
	base := "http://streamtier.test/proxy"
	body := rec.Body.String()
	assert.Contains(t, body, stream.WrapProxy(base, up.URL+"/hls/low/seg-0.ts"))
	assert.Contains(t, body, stream.WrapProxy(base, up.URL+"/abs/seg-1.ts"))
	assert.Contains(t, body, `URI="`+stream.WrapProxy(base, up.URL+"/hls/low/keys/k1.bin")+`"`)
	assert.Contains(t, body, "#EXT-X-ENDLIST")
}

func TestHandler_UpstreamFailures(t *testing.T) {
	up := newUpstream(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	h := newHandler(Config{})

	tests := []struct {
		name   string
		url    string
		status int
		code   string
	}{
		{name: "unreachable", url: deadURL + "/movie.mp4", status: http.StatusBadGateway, code: "upstream_unreachable"},
		{name: "server error", url: up.URL + "/broken", status: http.StatusBadGateway, code: "upstream_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, proxyRequest(http.MethodGet, tt.url))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}

	// Client errors pass through untouched.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, proxyRequest(http.MethodGet, up.URL+"/missing.mp4"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_RejectsBadRequests(t *testing.T) {
	h := newHandler(Config{ListenAddr: ":8088"})

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{name: "missing url", req: httptest.NewRequest(http.MethodGet, "/proxy", nil), status: http.StatusBadRequest},
		{name: "relative url", req: proxyRequest(http.MethodGet, "/media/movie.mp4"), status: http.StatusBadRequest},
		{name: "ftp url", req: proxyRequest(http.MethodGet, "ftp://cdn.example/movie.mp4"), status: http.StatusBadRequest},
		{name: "self loop", req: proxyRequest(http.MethodGet, "http://localhost:8088/proxy?url=x"), status: http.StatusLoopDetected},
		{name: "post", req: proxyRequest(http.MethodPost, "https://cdn.example/movie.mp4"), status: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHandler_RateLimited(t *testing.T) {
	up := newUpstream(t)
	h := newHandler(Config{Rate: 0.001, Burst: 1})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, proxyRequest(http.MethodGet, up.URL+"/media/movie.mp4"))
	require.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, proxyRequest(http.MethodGet, up.URL+"/media/movie.mp4").WithContext(ctx))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).Error)
}

func TestHandler_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "payload")
	}))
	defer up.Close()

	transport := &http.Transport{DisableKeepAlives: true}
	defer transport.CloseIdleConnections()
	h := newHandler(Config{Client: &http.Client{Transport: transport}})

	for range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, proxyRequest(http.MethodGet, up.URL+"/movie.mp4"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
