// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamtier/internal/config"
)

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/movie.mp4", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(make([]byte, 512))
	})
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\nlow.m3u8\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func resolveConfig(srv *httptest.Server) config.AppConfig {
	cfg := config.Defaults()
	cfg.Media.EdgeProxyBase = srv.URL + "/edge"
	cfg.Media.BackendProxyBase = srv.URL + "/backend"
	cfg.Playback.ProbeTimeout = 2 * time.Second
	return cfg
}

func TestRunResolveProgressiveDirect(t *testing.T) {
	srv := mediaServer(t)
	var out bytes.Buffer

	err := runResolve(context.Background(), &out, resolveConfig(srv), &resolveOptions{locator: srv.URL + "/movie.mp4"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "direct:        "+srv.URL+"/movie.mp4")
	assert.Contains(t, out.String(), "-> trying(direct)")
	assert.Contains(t, out.String(), "outcome: playing on direct")
}

func TestRunResolveProgressiveFallsBackToBackend(t *testing.T) {
	srv := mediaServer(t)
	var out bytes.Buffer

	err := runResolve(context.Background(), &out, resolveConfig(srv), &resolveOptions{locator: srv.URL + "/missing.mp4"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "-> trying(edge_proxy)")
	assert.Contains(t, out.String(), "outcome: playing on backend_proxy")
}

func TestRunResolveAdaptiveWithoutClientExhausts(t *testing.T) {
	srv := mediaServer(t)
	var out bytes.Buffer

	err := runResolve(context.Background(), &out, resolveConfig(srv), &resolveOptions{
		locator:  srv.URL + "/master.m3u8",
		noClient: true,
	})
	require.ErrorIs(t, err, errExhausted)
	assert.Contains(t, out.String(), "outcome: exhausted")
}

func TestRunResolveRejectsEmptyLocator(t *testing.T) {
	srv := mediaServer(t)
	err := runResolve(context.Background(), &bytes.Buffer{}, resolveConfig(srv), &resolveOptions{locator: "  "})
	require.Error(t, err)
}
