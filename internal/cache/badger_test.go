// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBadger(t *testing.T, dir string) *Badger {
	t.Helper()
	b, err := NewBadger(BadgerConfig{Dir: dir}, zerolog.Nop())
	require.NoError(t, err)
	return b
}

func TestBadger_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b := openBadger(t, "")
	defer func() { _ = b.Close() }()

	_, err := b.Get(ctx, "tier:abc")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Set(ctx, "tier:abc", "direct", time.Minute))
	got, err := b.Get(ctx, "tier:abc")
	require.NoError(t, err)
	assert.Equal(t, "direct", got)

	require.NoError(t, b.Delete(ctx, "tier:abc"))
	_, err = b.Get(ctx, "tier:abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadger_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b := openBadger(t, dir)
	require.NoError(t, b.Set(ctx, "tier:abc", "edge_proxy", time.Hour))
	require.NoError(t, b.Close())

	reopened := openBadger(t, dir)
	defer func() { _ = reopened.Close() }()
	got, err := reopened.Get(ctx, "tier:abc")
	require.NoError(t, err)
	assert.Equal(t, "edge_proxy", got)
}

func TestBadger_PingAfterClose(t *testing.T) {
	b := openBadger(t, "")
	assert.NoError(t, b.Ping(context.Background()))
	require.NoError(t, b.Close())
	assert.Error(t, b.Ping(context.Background()))
}

func TestBadger_RunGCStopsWithContext(t *testing.T) {
	b := openBadger(t, t.TempDir())
	defer func() { _ = b.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.RunGC(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunGC did not return after cancel")
	}
}
