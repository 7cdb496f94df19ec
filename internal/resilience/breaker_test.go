// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xglog "github.com/ManuGH/streamtier/internal/log"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

var errUpstream = errors.New("upstream status 502")

func failing() error { return errUpstream }
func healthy() error { return nil }

func newTestBreaker(t *testing.T, threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(t.Name(), threshold, cooldown, WithClock(clock)), clock
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(t, 3, time.Minute)

	assert.ErrorIs(t, b.Do(failing), errUpstream)
	assert.ErrorIs(t, b.Do(failing), errUpstream)
	require.NoError(t, b.Do(healthy), "success resets the streak")
	assert.ErrorIs(t, b.Do(failing), errUpstream)
	assert.ErrorIs(t, b.Do(failing), errUpstream)
	assert.Equal(t, StateClosed, b.State())

	assert.ErrorIs(t, b.Do(failing), errUpstream)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_OpeningIsLogged(t *testing.T) {
	var buf bytes.Buffer
	xglog.Configure(xglog.Config{Level: "info", Output: &buf})
	t.Cleanup(func() { xglog.Configure(xglog.Config{Output: os.Stdout}) })

	b, _ := newTestBreaker(t, 1, time.Minute)
	assert.ErrorIs(t, b.Do(failing), errUpstream)
	require.Equal(t, StateOpen, b.State())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "breaker.opened", entry[xglog.FieldEvent])
	assert.Equal(t, "resilience", entry[xglog.FieldComponent])
	assert.Equal(t, t.Name(), entry[xglog.FieldSource])
	assert.Equal(t, "warn", entry["level"])
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	tests := []struct {
		name  string
		probe func() error
		want  State
	}{
		{name: "probe succeeds", probe: healthy, want: StateClosed},
		{name: "probe fails", probe: failing, want: StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, clock := newTestBreaker(t, 1, 10*time.Second)
			require.Error(t, b.Do(failing))

			clock.advance(5 * time.Second)
			require.ErrorIs(t, b.Do(healthy), ErrOpen, "still cooling down")

			clock.advance(6 * time.Second)
			_ = b.Do(tt.probe)
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreaker_ReopenRestartsCooldown(t *testing.T) {
	b, clock := newTestBreaker(t, 1, 10*time.Second)
	require.Error(t, b.Do(failing))
	clock.advance(11 * time.Second)
	require.Error(t, b.Do(failing))

	clock.advance(5 * time.Second)
	assert.ErrorIs(t, b.Do(healthy), ErrOpen)
}

func TestBreaker_SingleProbeInFlight(t *testing.T) {
	b, clock := newTestBreaker(t, 1, time.Second)
	require.Error(t, b.Do(failing))
	clock.advance(2 * time.Second)

	err := b.Do(func() error {
		assert.Equal(t, StateHalfOpen, b.State())
		assert.ErrorIs(t, b.Do(healthy), ErrOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_CancellationIsNotCounted(t *testing.T) {
	b, _ := newTestBreaker(t, 1, time.Minute)

	err := b.Do(func() error { return fmt.Errorf("fetch document: %w", context.Canceled) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())

	require.ErrorIs(t, b.Do(failing), errUpstream)
	assert.Equal(t, StateOpen, b.State(), "deadline and status errors still count")
}

func TestBreaker_Defaults(t *testing.T) {
	b := New("direct", 0, -time.Second)
	assert.Equal(t, DefaultThreshold, b.threshold)
	assert.Equal(t, DefaultCooldown, b.cooldown)
	assert.Equal(t, "direct", b.Source())
	assert.Equal(t, StateClosed, b.State())
}
