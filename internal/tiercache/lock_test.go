// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tiercache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamtier/internal/cache"
)

func TestStore_LockIsExclusivePerScope(t *testing.T) {
	store := NewStore(cache.NewMemory(0), time.Minute, zerolog.Nop())
	ctx := context.Background()

	release, err := store.Lock(ctx, "browser-1")
	require.NoError(t, err)

	other, err := store.Lock(ctx, "browser-2")
	require.NoError(t, err, "other scopes are not blocked")
	other()

	acquired := make(chan func(), 1)
	go func() {
		next, err := store.Lock(ctx, "browser-1")
		if err == nil {
			acquired <- next
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the scope was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	release() // second call is a no-op

	select {
	case next := <-acquired:
		next()
	case <-time.After(time.Second):
		t.Fatal("waiter not admitted after release")
	}
	assert.Zero(t, store.locks.len(), "idle scopes are forgotten")
}

func TestStore_LockHonoursContext(t *testing.T) {
	store := NewStore(cache.NewMemory(0), time.Minute, zerolog.Nop())

	release, err := store.Lock(context.Background(), "browser-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = store.Lock(ctx, "browser-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, store.locks.len(), "only the holder remains")
}
