// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tiercache remembers which delivery tier last succeeded for a
// browsing session so a returning session can skip the cascade.
package tiercache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/streamtier/internal/cache"
	"github.com/ManuGH/streamtier/internal/metrics"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/rs/zerolog"
)

// Key is the fixed per-session key of the tier preference.
const Key = "stream_tier_preference"

// DefaultTTL approximates the lifetime of a browsing session.
const DefaultTTL = 12 * time.Hour

// Cache is the tier preference store consulted by the cascade controller.
// Implementations are synchronous and last-write-wins.
type Cache interface {
	// Get returns the remembered tier. BackendProxy is never returned.
	Get(ctx context.Context) (stream.Tier, bool)
	// Set remembers tier. Setting BackendProxy is a no-op.
	Set(ctx context.Context, tier stream.Tier)
	// Clear forgets the preference.
	Clear(ctx context.Context)
}

// Store hands out scoped tier caches over one key/value backend.
type Store struct {
	backend cache.Store
	ttl     time.Duration
	logger  zerolog.Logger
	locks   scopeLocks
}

// NewStore wraps backend. ttl <= 0 uses DefaultTTL.
func NewStore(backend cache.Store, ttl time.Duration, logger zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{backend: backend, ttl: ttl, logger: logger}
}

// For returns the tier cache of one browsing session.
func (s *Store) For(scope string) Cache {
	return &scoped{
		store: s,
		key:   "tier:" + scope + ":" + Key,
		log:   s.logger.With().Str("scope", scope).Logger(),
	}
}

type scoped struct {
	store *Store
	key   string
	log   zerolog.Logger
}

func (c *scoped) Get(ctx context.Context) (stream.Tier, bool) {
	raw, err := c.store.backend.Get(ctx, c.key)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		metrics.IncTierCacheOp("get", "miss")
		return 0, false
	case err != nil:
		// An unreachable backend reads as no preference.
		metrics.IncTierCacheOp("get", "error")
		c.log.Warn().Err(err).Msg("tier preference lookup failed")
		return 0, false
	}
	tier, ok := stream.ParseTier(raw)
	if !ok || !tier.Cacheable() {
		metrics.IncTierCacheOp("get", "ignored")
		c.log.Debug().Str("value", raw).Msg("ignoring stored tier preference")
		return 0, false
	}
	metrics.IncTierCacheOp("get", "hit")
	return tier, true
}

func (c *scoped) Set(ctx context.Context, tier stream.Tier) {
	if !tier.Cacheable() {
		metrics.IncTierCacheOp("set", "ignored")
		return
	}
	if err := c.store.backend.Set(ctx, c.key, tier.String(), c.store.ttl); err != nil {
		metrics.IncTierCacheOp("set", "error")
		c.log.Warn().Err(err).Str("tier", tier.String()).Msg("tier preference not saved")
		return
	}
	metrics.IncTierCacheOp("set", "ok")
}

func (c *scoped) Clear(ctx context.Context) {
	if err := c.store.backend.Delete(ctx, c.key); err != nil {
		metrics.IncTierCacheOp("clear", "error")
		c.log.Warn().Err(err).Msg("tier preference not cleared")
		return
	}
	metrics.IncTierCacheOp("clear", "ok")
}

// Memory is a standalone in-process tier cache, handy for tests and the CLI.
type Memory struct {
	mu     sync.Mutex
	tier   stream.Tier
	set    bool
	sets   int
	clears int
}

// NewMemory returns an empty in-process tier cache.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Get(_ context.Context) (stream.Tier, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return 0, false
	}
	return m.tier, true
}

func (m *Memory) Set(_ context.Context, tier stream.Tier) {
	if !tier.Cacheable() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tier, m.set = tier, true
	m.sets++
}

func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tier, m.set = 0, false
	m.clears++
}

// Counts reports how many Set and Clear calls took effect.
func (m *Memory) Counts() (sets, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets, m.clears
}
