// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tiercache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/ManuGH/streamtier/internal/cache"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ScopedGetSetClear(t *testing.T) {
	ctx := context.Background()
	backend := cache.NewMemory(0)
	store := NewStore(backend, time.Minute, zerolog.Nop())

	a := store.For("session-a")
	b := store.For("session-b")

	_, ok := a.Get(ctx)
	assert.False(t, ok)

	a.Set(ctx, stream.TierEdgeProxy)
	tier, ok := a.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, stream.TierEdgeProxy, tier)

	_, ok = b.Get(ctx)
	assert.False(t, ok, "scopes must not share preferences")

	a.Clear(ctx)
	_, ok = a.Get(ctx)
	assert.False(t, ok)
}

func TestStore_NeverHoldsBackendProxy(t *testing.T) {
	ctx := context.Background()
	backend := cache.NewMemory(0)
	c := NewStore(backend, time.Minute, zerolog.Nop()).For("s")

	c.Set(ctx, stream.TierDirect)
	c.Set(ctx, stream.TierBackendProxy)

	tier, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, stream.TierDirect, tier, "BackendProxy write must be ignored")
}

func TestStore_StoredBackendProxyReadsAsAbsent(t *testing.T) {
	backend := cache.NewMemory(0)
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, "tier:s:"+Key, "backend_proxy", time.Minute))
	require.NoError(t, backend.Set(ctx, "tier:junk:"+Key, "17", time.Minute))

	store := NewStore(backend, time.Minute, zerolog.Nop())

	_, ok := store.For("s").Get(ctx)
	assert.False(t, ok)
	_, ok = store.For("junk").Get(ctx)
	assert.False(t, ok)
}

func TestStore_WritesCarryTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	backend, err := cache.NewRedis(ctx, cache.RedisConfig{Addr: mr.Addr(), Prefix: "t:"}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	NewStore(backend, 0, zerolog.Nop()).For("abc").Set(ctx, stream.TierDirect)
	assert.Equal(t, DefaultTTL, mr.TTL("t:tier:abc:"+Key))
}

func TestStore_UnreachableBackendReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	backend, err := cache.NewRedis(ctx, cache.RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	c := NewStore(backend, time.Hour, zerolog.Nop()).For("abc")
	c.Set(ctx, stream.TierEdgeProxy)
	mr.Close()

	_, ok := c.Get(ctx)
	assert.False(t, ok)
	assert.NotPanics(t, func() {
		c.Set(ctx, stream.TierDirect)
		c.Clear(ctx)
	})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Set(ctx, stream.TierBackendProxy)
	_, ok := m.Get(ctx)
	assert.False(t, ok)

	m.Set(ctx, stream.TierDirect)
	tier, ok := m.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, stream.TierDirect, tier)

	m.Clear(ctx)
	_, ok = m.Get(ctx)
	assert.False(t, ok)

	sets, clears := m.Counts()
	assert.Equal(t, 1, sets)
	assert.Equal(t, 1, clears)
}
