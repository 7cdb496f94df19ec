// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tiercache

import (
	"context"
	"sync"
)

// scopeLocks hands out one exclusive slot per browsing-session scope.
// Entries exist only while someone holds or waits for them.
type scopeLocks struct {
	mu    sync.Mutex
	slots map[string]*scopeSlot
}

type scopeSlot struct {
	held  chan struct{}
	users int
}

func (l *scopeLocks) acquire(ctx context.Context, scope string) (func(), error) {
	l.mu.Lock()
	if l.slots == nil {
		l.slots = make(map[string]*scopeSlot)
	}
	slot, ok := l.slots[scope]
	if !ok {
		slot = &scopeSlot{held: make(chan struct{}, 1)}
		l.slots[scope] = slot
	}
	slot.users++
	l.mu.Unlock()

	select {
	case slot.held <- struct{}{}:
	case <-ctx.Done():
		l.leave(scope, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.held
			l.leave(scope, slot)
		})
	}, nil
}

func (l *scopeLocks) leave(scope string, slot *scopeSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.users--
	if slot.users == 0 {
		delete(l.slots, scope)
	}
}

func (l *scopeLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// Lock waits until no other holder owns scope, or ctx ends. The returned
// release func must be called once the holder is done with the scope's tier
// cache; calling it again does nothing. Holders in the same process run one
// at a time per scope, which keeps cascade runs of one browsing session from
// interleaving their reads and writes.
func (s *Store) Lock(ctx context.Context, scope string) (release func(), err error) {
	return s.locks.acquire(ctx, scope)
}
