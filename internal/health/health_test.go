// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name   string
	status Status
	delay  time.Duration
}

func (c stubChecker) Name() string { return c.name }

func (c stubChecker) Check(ctx context.Context) CheckResult {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
		}
	}
	return CheckResult{Status: c.status}
}

func TestHealth_LivenessSkipsCheckersUnlessVerbose(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(stubChecker{name: "tier_cache", status: StatusUnhealthy})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks, "tier_cache")
}

func TestReady_Aggregation(t *testing.T) {
	tests := []struct {
		name      string
		checkers  []Checker
		wantReady bool
		want      Status
	}{
		{name: "no checkers", wantReady: true, want: StatusHealthy},
		{
			name:      "all healthy",
			checkers:  []Checker{stubChecker{name: "a", status: StatusHealthy}, stubChecker{name: "b", status: StatusHealthy}},
			wantReady: true,
			want:      StatusHealthy,
		},
		{
			name:      "degraded stays ready",
			checkers:  []Checker{stubChecker{name: "resolver_sources", status: StatusDegraded}, stubChecker{name: "b", status: StatusHealthy}},
			wantReady: true,
			want:      StatusDegraded,
		},
		{
			name:      "unhealthy wins over degraded",
			checkers:  []Checker{stubChecker{name: "a", status: StatusDegraded}, stubChecker{name: "tier_cache", status: StatusUnhealthy}},
			wantReady: false,
			want:      StatusUnhealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			for _, c := range tt.checkers {
				m.RegisterChecker(c)
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checkers))
		})
	}
}

func TestReady_ChecksRunConcurrentlyUnderTimeout(t *testing.T) {
	m := NewManager("test")
	m.timeout = 50 * time.Millisecond
	m.RegisterChecker(stubChecker{name: "slow_a", status: StatusHealthy, delay: time.Second})
	m.RegisterChecker(stubChecker{name: "slow_b", status: StatusHealthy, delay: time.Second})

	start := time.Now()
	resp := m.Ready(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Checks["slow_a"].Status)
	assert.Equal(t, StatusUnhealthy, resp.Checks["slow_b"].Status)
}

func TestServeHealth(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(stubChecker{name: "tier_cache", status: StatusUnhealthy})

	w := httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))

	assert.Equal(t, http.StatusOK, w.Code, "liveness is 200 even with unhealthy components")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, int64(0))
}

func TestServeReady(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		wantCode int
	}{
		{name: "healthy", status: StatusHealthy, wantCode: http.StatusOK},
		{name: "degraded", status: StatusDegraded, wantCode: http.StatusOK},
		{name: "unhealthy", status: StatusUnhealthy, wantCode: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test")
			m.RegisterChecker(stubChecker{name: "playback_sessions", status: tt.status})

			w := httptest.NewRecorder()
			m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantCode, w.Code)

			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantCode == http.StatusOK, resp.Ready)
			assert.Nil(t, resp.Checks, "checks are only listed on verbose")
		})
	}
}

type brokenWriter struct{ header http.Header }

func (w *brokenWriter) Header() http.Header       { return w.header }
func (w *brokenWriter) Write([]byte) (int, error) { return 0, http.ErrHandlerTimeout }
func (w *brokenWriter) WriteHeader(int)           {}

func TestServe_EncodingErrorDoesNotPanic(t *testing.T) {
	m := NewManager("test")
	assert.NotPanics(t, func() {
		m.ServeHealth(&brokenWriter{header: make(http.Header)}, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		m.ServeReady(&brokenWriter{header: make(http.Header)}, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	})
}
