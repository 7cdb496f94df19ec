// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/metrics"
	"github.com/ManuGH/streamtier/internal/probe"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/ManuGH/streamtier/internal/tiercache"
)

// Browsing-session scope carriers. The scope selects the tier cache.
const (
	ScopeHeader = "X-Session-ID"
	ScopeCookie = "streamtier_session"
)

var (
	ErrNotFound    = errors.New("session: not found")
	ErrTooMany     = errors.New("session: too many playback sessions")
	ErrManagerDone = errors.New("session: manager closed")
)

// SinkFactory creates the media sink for a new session.
type SinkFactory func(nativeAdaptive bool) probe.Sink

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Resolver      Resolver
	Tiers         *tiercache.Store
	NewSink       SinkFactory
	Clients       probe.ClientFactory
	ProbeTimeout  time.Duration
	BadgeDuration time.Duration
	// IdleTimeout disposes sessions nobody has looked at for this long. Zero disables reaping.
	IdleTimeout time.Duration
	MaxSessions int
	Logger      zerolog.Logger
}

// CreateOptions describe the playback environment of the requesting view.
type CreateOptions struct {
	// Scope is the browsing-session identifier. Empty scopes share one cache slot.
	Scope string
	// NativeHLS marks a sink that plays HLS without a streaming client.
	NativeHLS bool
	// DisableClient reports that no streaming client is available.
	DisableClient bool
}

// Manager owns the live playback sessions.
type Manager struct {
	cfg    ManagerConfig
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool

	stopJanitor chan struct{}
	janitorDone chan struct{}
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// NewManager creates a Manager and starts its idle reaper when configured.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		cfg:         cfg,
		logger:      cfg.Logger.With().Str(xglog.FieldComponent, "session_manager").Logger(),
		sessions:    make(map[string]*entry),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	if cfg.IdleTimeout > 0 {
		go m.janitor(cfg.IdleTimeout)
	} else {
		close(m.janitorDone)
	}
	return m
}

// Create starts a new playback session for ref.
func (m *Manager) Create(ref stream.WatchReference, opts CreateOptions) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerDone
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooMany
	}

	var clients probe.ClientFactory = m.cfg.Clients
	if opts.DisableClient || clients == nil {
		clients = noClients{}
	}

	id := uuid.NewString()
	s := New(id, ref, Config{
		Resolver:      m.cfg.Resolver,
		Sink:          m.cfg.NewSink(opts.NativeHLS),
		Clients:       clients,
		Cache:         m.cfg.Tiers.For(opts.Scope),
		ProbeTimeout:  m.cfg.ProbeTimeout,
		BadgeDuration: m.cfg.BadgeDuration,
		Logger:        m.cfg.Logger.With().Str(xglog.FieldScope, opts.Scope).Logger(),
		Lock: func(ctx context.Context) (func(), error) {
			return m.cfg.Tiers.Lock(ctx, opts.Scope)
		},
	})
	m.sessions[id] = &entry{session: s, lastSeen: time.Now()}
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SetPlaybackSessions(n)
	s.Start()

	m.logger.Info().
		Str(xglog.FieldEvent, "session.created").
		Str(xglog.FieldSessionID, id).
		Str(xglog.FieldMediaID, ref.MediaID).
		Msg("playback session created")
	return s, nil
}

// Get returns the session with id and marks it as seen.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = time.Now()
	return e.session, nil
}

// Retry restarts the session with id.
func (m *Manager) Retry(id string) (State, error) {
	s, err := m.Get(id)
	if err != nil {
		return State{}, err
	}
	if err := s.Retry(); err != nil {
		if errors.Is(err, ErrDisposed) {
			return State{}, ErrNotFound
		}
		return State{}, err
	}
	return s.State(), nil
}

// ReportBuffer forwards buffering telemetry to the session with id.
func (m *Manager) ReportBuffer(id string, bufferedEnd, duration float64) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.ReportBuffer(bufferedEnd, duration)
	return nil
}

// Dispose disposes and forgets the session with id.
func (m *Manager) Dispose(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	metrics.SetPlaybackSessions(n)
	e.session.Dispose()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close disposes every session and stops the reaper. Later Create calls fail.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	all := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	close(m.stopJanitor)
	<-m.janitorDone

	var wg sync.WaitGroup
	for _, e := range all {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Dispose()
		}(e.session)
	}
	wg.Wait()
	metrics.SetPlaybackSessions(0)
	m.logger.Info().Int("count", len(all)).Msg("playback sessions disposed")
}

func (m *Manager) janitor(idle time.Duration) {
	defer close(m.janitorDone)

	interval := idle / 2
	if interval < time.Second {
		interval = idle
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopJanitor:
			return
		case now := <-ticker.C:
			m.reap(now, idle)
		}
	}
}

func (m *Manager) reap(now time.Time, idle time.Duration) {
	m.mu.Lock()
	var stale []*Session
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) >= idle {
			stale = append(stale, e.session)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if len(stale) == 0 {
		return
	}
	metrics.SetPlaybackSessions(n)
	for _, s := range stale {
		s.Dispose()
	}
	m.logger.Debug().Int("count", len(stale)).Msg("reaped idle playback sessions")
}

// noClients reports that no streaming client is available.
type noClients struct{}

func (noClients) Supported() bool { return false }

func (noClients) New(probe.Sink) probe.StreamClient { return nil }
