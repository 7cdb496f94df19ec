// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisStore(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, wrapRedis(client, "test:")
}

func TestNewRedis_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := NewRedis(context.Background(), RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, DefaultRedisPrefix, r.prefix)
	assert.NoError(t, r.Ping(context.Background()))
}

func TestNewRedis_UnreachableFailsAfterRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), RedisConfig{Addr: addr, ConnectAttempts: 2}, zerolog.Nop())
	assert.ErrorContains(t, err, addr)
}

func TestRedis_RoundTripIsNamespaced(t *testing.T) {
	ctx := context.Background()
	mr, r := newMiniRedisStore(t)

	require.NoError(t, r.Set(ctx, "tier:abc", "edge_proxy", time.Hour))
	got, err := r.Get(ctx, "tier:abc")
	require.NoError(t, err)
	assert.Equal(t, "edge_proxy", got)

	raw, err := mr.Get("test:tier:abc")
	require.NoError(t, err)
	assert.Equal(t, "edge_proxy", raw, "values are stored as plain strings")
	assert.Equal(t, time.Hour, mr.TTL("test:tier:abc"))
}

func TestRedis_MissingAndExpired(t *testing.T) {
	ctx := context.Background()
	mr, r := newMiniRedisStore(t)

	_, err := r.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Set(ctx, "short", "direct", time.Second))
	mr.FastForward(2 * time.Second)
	_, err = r.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_DeleteLeavesForeignKeys(t *testing.T) {
	ctx := context.Background()
	mr, r := newMiniRedisStore(t)
	require.NoError(t, mr.Set("tier:abc", "foreign"))

	require.NoError(t, r.Set(ctx, "tier:abc", "direct", time.Hour))
	require.NoError(t, r.Delete(ctx, "tier:abc"))

	_, err := r.Get(ctx, "tier:abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, mr.Exists("tier:abc"))
}

func TestRedis_ServerGoneIsError(t *testing.T) {
	ctx := context.Background()
	mr, r := newMiniRedisStore(t)
	mr.Close()

	_, err := r.Get(ctx, "tier:abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, r.Ping(ctx))
}
