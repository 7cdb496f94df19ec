// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience keeps the resolver away from document sources that keep
// failing. Each source gets its own Breaker.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	xglog "github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/metrics"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

const (
	DefaultThreshold = 3
	DefaultCooldown  = 30 * time.Second
)

// ErrOpen is returned without calling through while a breaker is open.
var ErrOpen = errors.New("resilience: source breaker is open")

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Breaker opens after threshold consecutive failures. Once the cooldown has
// passed it admits one probe call; that call's outcome closes or reopens it.
type Breaker struct {
	source    string
	threshold int
	cooldown  time.Duration
	clock     Clock

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

type Option func(*Breaker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(b *Breaker) { b.clock = c }
}

// New returns a closed breaker for source. Non-positive threshold or cooldown
// fall back to DefaultThreshold and DefaultCooldown.
func New(source string, threshold int, cooldown time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		source:    source,
		threshold: threshold,
		cooldown:  cooldown,
		clock:     wallClock{},
		state:     StateClosed,
	}
	if b.threshold <= 0 {
		b.threshold = DefaultThreshold
	}
	if b.cooldown <= 0 {
		b.cooldown = DefaultCooldown
	}
	for _, opt := range opts {
		opt(b)
	}
	metrics.SetBreakerState(source, string(StateClosed))
	return b
}

func (b *Breaker) Source() string { return b.source }

// Do calls fn unless the breaker is open. A context cancellation coming back
// from fn is the caller giving up and leaves the failure count alone.
func (b *Breaker) Do(fn func() error) error {
	if !b.admit() {
		metrics.IncBreakerRejected(b.source)
		return ErrOpen
	}

	err := fn()
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.failures = 0
		b.probing = false
		b.setState(StateClosed, "")
	case errors.Is(err, context.Canceled):
		b.probing = false
	default:
		b.failed()
	}
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.setState(StateHalfOpen, "")
	case StateClosed:
		return true
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

// failed must be called with mu held.
func (b *Breaker) failed() {
	b.failures++
	wasProbe := b.probing
	b.probing = false

	switch {
	case b.state == StateHalfOpen || wasProbe:
		b.setState(StateOpen, metrics.BreakerTripTrialFailed)
	case b.state == StateClosed && b.failures >= b.threshold:
		b.setState(StateOpen, metrics.BreakerTripThreshold)
	}
}

// setState must be called with mu held. reason is only used when opening.
func (b *Breaker) setState(next State, reason string) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	metrics.SetBreakerState(b.source, string(next))

	if next != StateOpen {
		return
	}
	b.openedAt = b.clock.Now()
	metrics.RecordBreakerTrip(b.source, reason)
	logger := xglog.WithComponent("resilience")
	logger.Warn().
		Str(xglog.FieldEvent, "breaker.opened").
		Str(xglog.FieldSource, b.source).
		Str(xglog.FieldOldState, string(prev)).
		Str(xglog.FieldReason, reason).
		Int("failures", b.failures).
		Dur("cooldown", b.cooldown).
		Msg("source breaker opened")
}

// State returns the current position without advancing it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
