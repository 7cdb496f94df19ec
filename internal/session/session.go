// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session drives one playback view: it resolves the watch reference,
// runs the tier cascade, and publishes loading, playing and errored states.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamtier/internal/cascade"
	xglog "github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/metrics"
	"github.com/ManuGH/streamtier/internal/probe"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/ManuGH/streamtier/internal/telemetry"
	"github.com/ManuGH/streamtier/internal/tiercache"
)

// DefaultBadgeDuration is how long the tier badge stays visible.
const DefaultBadgeDuration = 5 * time.Second

// ErrDisposed is returned by operations on a disposed session.
var ErrDisposed = errors.New("session: disposed")

// Resolver turns a watch reference into tier addresses.
type Resolver interface {
	Resolve(ctx context.Context, ref stream.WatchReference) (stream.ResolvedAddresses, error)
}

// Config holds what a Session needs. Sink is owned by the session from
// construction until Dispose.
type Config struct {
	Resolver      Resolver
	Sink          probe.Sink
	Clients       probe.ClientFactory
	Cache         tiercache.Cache
	ProbeTimeout  time.Duration
	BadgeDuration time.Duration
	Logger        zerolog.Logger

	// Lock, when set, is held for a whole run, including the tier cache
	// reset on Retry. Sessions sharing a tier cache share one Lock.
	Lock func(ctx context.Context) (release func(), err error)
}

// Session is one playback view.
type Session struct {
	id  string
	ref stream.WatchReference
	cfg Config

	// lifecycle serializes Start, Retry and Dispose.
	lifecycle sync.Mutex

	mu       sync.Mutex
	state    State
	subs     map[int]chan State
	nextSub  int
	cancel   context.CancelFunc
	runDone  chan struct{}
	client   probe.StreamClient
	badge    *time.Timer
	badgeGen int
	disposed bool

	done   chan struct{}
	logger zerolog.Logger
}

// New creates a session in the loading phase. Call Start to begin playback.
func New(id string, ref stream.WatchReference, cfg Config) *Session {
	if cfg.BadgeDuration <= 0 {
		cfg.BadgeDuration = DefaultBadgeDuration
	}
	logger := cfg.Logger.With().
		Str(xglog.FieldComponent, "session").
		Str(xglog.FieldSessionID, id).
		Str(xglog.FieldMediaID, ref.MediaID).
		Logger()
	return &Session{
		id:     id,
		ref:    ref,
		cfg:    cfg,
		state:  loadingState(ref),
		subs:   make(map[int]chan State),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Reference returns the watch reference the session plays.
func (s *Session) Reference() stream.WatchReference { return s.ref }

// Start begins resolution and the cascade. Calling Start on a session that
// is already running or disposed does nothing.
func (s *Session) Start() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.runDone != nil {
		return
	}
	s.startLocked(false)
	metrics.IncPlaybackStart(metrics.PlaybackTriggerStart)
}

func (s *Session) startLocked(clearCache bool) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = xglog.ContextWithSessionID(ctx, s.id)
	done := make(chan struct{})
	s.cancel = cancel
	s.runDone = done

	go func() {
		defer close(done)
		s.run(ctx, clearCache)
	}()
}

func (s *Session) run(ctx context.Context, clearCache bool) {
	start := time.Now()
	if s.cfg.Lock != nil {
		release, err := s.cfg.Lock(ctx)
		if err != nil {
			return
		}
		defer release()
	}
	if clearCache {
		s.cfg.Cache.Clear(ctx)
	}
	addrs, err := s.cfg.Resolver.Resolve(ctx, s.ref)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str(xglog.FieldEvent, "session.resolve_failed").Msg("watch reference could not be resolved")
		metrics.IncPlaybackError(metrics.PlaybackStageResolve, errorCode(err))
		metrics.ObservePlaybackStartup("", metrics.PlaybackOutcomeFailed, time.Since(start))
		s.fail(ctx, ReasonFor(err))
		return
	}
	media := telemetry.MediaKind(addrs.IsAdaptive())

	ctrl := cascade.New(cascade.Config{
		Sink:         s.cfg.Sink,
		Clients:      s.cfg.Clients,
		Cache:        s.cfg.Cache,
		ProbeTimeout: s.cfg.ProbeTimeout,
		Logger:       s.logger,
	})
	out, err := ctrl.Run(ctx, addrs)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		// Retry or Dispose raced the final step; the result is stale.
		if out.Client != nil {
			out.Client.Destroy()
		}
		return
	}

	if !out.Playing() {
		metrics.IncPlaybackError(metrics.PlaybackStageCascade, metrics.PlaybackCodeExhausted)
		metrics.ObservePlaybackStartup(media, metrics.PlaybackOutcomeFailed, time.Since(start))
		s.setLocked(func(st *State) {
			st.Phase = PhaseErrored
			st.Reason = ReasonExhausted
		})
		return
	}

	metrics.ObservePlaybackStartup(media, metrics.PlaybackOutcomeOK, time.Since(start))
	tier := out.Tier
	s.client = out.Client
	s.setLocked(func(st *State) {
		st.Phase = PhasePlaying
		st.Tier = &tier
		st.Reason = ""
		st.BadgeVisible = true
	})
	s.badgeGen++
	gen := s.badgeGen
	s.badge = time.AfterFunc(s.cfg.BadgeDuration, func() { s.hideBadge(gen) })
}

func (s *Session) fail(ctx context.Context, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.setLocked(func(st *State) {
		st.Phase = PhaseErrored
		st.Reason = reason
	})
}

func (s *Session) hideBadge(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || gen != s.badgeGen || !s.state.BadgeVisible {
		return
	}
	s.setLocked(func(st *State) { st.BadgeVisible = false })
}

// setLocked applies fn to the state and publishes the result. s.mu must be held.
func (s *Session) setLocked(fn func(*State)) {
	fn(&s.state)
	s.state.UpdatedAt = time.Now()
	for _, ch := range s.subs {
		publish(ch, s.state)
	}
}

// publish replaces whatever is pending in ch with st.
func publish(ch chan State, st State) {
	select {
	case <-ch:
	default:
	}
	ch <- st
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel that always holds the latest state, starting
// with the current one. The channel is closed on Dispose or when the
// returned cancel function is called.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// ReportBuffer updates the buffering progress from the sink's buffered end
// and duration, both in seconds. It is ignored unless the session is playing
// and duration is positive.
func (s *Session) ReportBuffer(bufferedEnd, duration float64) {
	pct, ok := BufferedPercent(bufferedEnd, duration)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.state.Phase != PhasePlaying {
		return
	}
	s.setLocked(func(st *State) { st.BufferedPercent = pct })
}

// Retry stops any run in flight and starts over from the original watch
// reference. The new run clears the tier cache before resolving.
func (s *Session) Retry() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.stop(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	s.state = loadingState(s.ref)
	s.setLocked(func(*State) {})
	s.startLocked(true)
	metrics.IncPlaybackStart(metrics.PlaybackTriggerRetry)

	s.logger.Info().Str(xglog.FieldEvent, "session.retry").Msg("playback retried")
	return nil
}

// stop cancels the current run, waits for it, and drops playback resources
// other than the sink. s.lifecycle must be held.
func (s *Session) stop() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	cancel, done := s.cancel, s.runDone
	s.cancel, s.runDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Destroy()
		s.client = nil
	}
	if s.badge != nil {
		s.badge.Stop()
		s.badge = nil
	}
	return nil
}

// Dispose tears the session down: it cancels any run, destroys the retained
// streaming client, releases the sink and closes subscriber channels. It is
// safe to call more than once.
func (s *Session) Dispose() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.stop(); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.cfg.Sink.Release()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	close(s.done)
	s.logger.Debug().Str(xglog.FieldEvent, "session.disposed").Msg("playback session disposed")
}

// Done is closed once the session has been disposed.
func (s *Session) Done() <-chan struct{} { return s.done }
