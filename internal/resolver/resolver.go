// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resolver turns a watch reference into tier-specific media addresses.
//
// Locators that point at a watch document are fetched (first through the
// backend proxy, then directly) and the first media element's address is
// extracted. Other locators already are the media address.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	xglog "github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/metrics"
	"github.com/ManuGH/streamtier/internal/resilience"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/ManuGH/streamtier/internal/telemetry"
)

const (
	DefaultFetchTimeout   = 8 * time.Second
	DefaultResolveTimeout = 15 * time.Second

	// maxDocumentBytes caps how much of a watch document is read.
	maxDocumentBytes = 4 << 20

	SourceBackendProxy = "backend_proxy"
	SourceDirect       = "direct"

	modeDocument    = "document"
	modePassthrough = "passthrough"
)

// DefaultDocumentMarkers are locator path fragments that identify a watch document.
var DefaultDocumentMarkers = []string{"/watch/", "/embed/"}

// Config tunes a Resolver.
type Config struct {
	DocumentMarkers  []string
	FetchTimeout     time.Duration
	ResolveTimeout   time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
}

// Resolver resolves watch references. It is safe for concurrent use.
type Resolver struct {
	cfg     Config
	builder stream.Builder
	client  *http.Client
	sources []source
	group   singleflight.Group
	logger  zerolog.Logger

	mu      sync.Mutex
	flights map[string]*flight
	nextID  uint64
}

// flight is one shared document fetch. It is cancelled once every caller
// waiting on it has left.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type source struct {
	name    string
	target  func(locator string) string
	breaker *resilience.Breaker
}

type document struct {
	body   []byte
	url    *url.URL
	source string
}

// New creates a Resolver. The builder supplies the proxy bases used both for
// the backend-proxy document fetch and for the tier addresses.
func New(cfg Config, builder stream.Builder, client *http.Client, logger zerolog.Logger) (*Resolver, error) {
	if builder.BackendProxyBase == "" || builder.EdgeProxyBase == "" {
		return nil, errors.New("resolver: proxy bases not configured")
	}
	if len(cfg.DocumentMarkers) == 0 {
		cfg.DocumentMarkers = DefaultDocumentMarkers
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}
	if client == nil {
		client = &http.Client{}
	}

	r := &Resolver{
		cfg:     cfg,
		builder: builder,
		client:  client,
		logger:  logger.With().Str(xglog.FieldComponent, "resolver").Logger(),
		flights: make(map[string]*flight),
	}
	r.sources = []source{
		{
			name: SourceBackendProxy,
			target: func(locator string) string {
				return stream.WrapProxy(builder.BackendProxyBase, locator)
			},
			breaker: resilience.New(SourceBackendProxy, cfg.BreakerThreshold, cfg.BreakerReset),
		},
		{
			name:    SourceDirect,
			target:  func(locator string) string { return locator },
			breaker: resilience.New(SourceDirect, cfg.BreakerThreshold, cfg.BreakerReset),
		},
	}
	return r, nil
}

// IsDocumentLocator reports whether locator must be fetched and parsed.
func (r *Resolver) IsDocumentLocator(locator string) bool {
	for _, marker := range r.cfg.DocumentMarkers {
		if strings.Contains(locator, marker) {
			return true
		}
	}
	return false
}

// Resolve discovers the media address for ref and derives the tier addresses.
// The whole call is bounded by the resolve timeout; exceeding it yields
// ErrTimeout no matter which step was running. Cancellation of ctx returns
// ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, ref stream.WatchReference) (stream.ResolvedAddresses, error) {
	locator := strings.TrimSpace(ref.Locator)
	if locator == "" {
		return stream.ResolvedAddresses{}, fmt.Errorf("resolver: %w: empty locator", stream.ErrInvalidReference)
	}

	mode := modePassthrough
	if r.IsDocumentLocator(locator) {
		mode = modeDocument
	}

	ctx, span := telemetry.Tracer("streamtier/resolver").Start(ctx, "resolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.ResolveModeKey, mode))
	if ref.MediaID != "" {
		span.SetAttributes(attribute.String(telemetry.PlaybackMediaIDKey, ref.MediaID))
	}

	start := time.Now()
	addrs, err := r.resolve(ctx, locator, mode)
	metrics.ObserveResolve(mode, Code(err), time.Since(start))

	logger := xglog.WithContext(ctx, r.logger).With().
		Str(xglog.FieldLocator, locator).
		Str("mode", mode).
		Dur(xglog.FieldDuration, time.Since(start)).
		Logger()
	if err != nil {
		telemetry.RecordError(span, err, Code(err))
		logger.Warn().Err(err).Str(xglog.FieldEvent, "resolver.failed").Msg("resolve failed")
		return stream.ResolvedAddresses{}, err
	}

	logger.Debug().
		Str(xglog.FieldEvent, "resolver.resolved").
		Str(xglog.FieldURL, addrs.Direct).
		Msg("resolved media address")
	return addrs, nil
}

func (r *Resolver) resolve(parent context.Context, locator, mode string) (stream.ResolvedAddresses, error) {
	if mode == modePassthrough {
		addrs, err := r.builder.Build(locator)
		if err != nil {
			return stream.ResolvedAddresses{}, fmt.Errorf("resolver: %w: %v", stream.ErrInvalidReference, err)
		}
		return addrs, nil
	}

	ctx, cancel := context.WithTimeout(parent, r.cfg.ResolveTimeout)
	defer cancel()

	doc, err := r.sharedFetch(ctx, locator)
	if err != nil {
		return stream.ResolvedAddresses{}, r.classify(parent, ctx, locator, err)
	}

	raw, ok := ExtractMediaAddress(doc.body)
	if !ok {
		return stream.ResolvedAddresses{}, newError(ErrNoMediaFound, locator, nil)
	}

	media, err := r.builder.Normalize(raw, doc.url)
	if err != nil {
		return stream.ResolvedAddresses{}, newError(ErrNoMediaFound, locator, err)
	}
	addrs, err := r.builder.Build(media)
	if err != nil {
		return stream.ResolvedAddresses{}, newError(ErrNoMediaFound, locator, err)
	}
	return addrs, nil
}

// classify maps a failure to the caller's cancellation, the resolve timeout,
// or an exhausted source list, in that order.
func (r *Resolver) classify(parent, ctx context.Context, locator string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(ErrTimeout, locator, err)
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return newError(ErrNoSourceReachable, locator, err)
}

// sharedFetch joins concurrent fetches of the same locator. One caller
// giving up does not fail the others; the fetch is cancelled when the last
// waiting caller leaves.
func (r *Resolver) sharedFetch(ctx context.Context, locator string) (*document, error) {
	f := r.join(ctx, locator)
	defer r.leave(locator, f)

	ch := r.group.DoChan(f.key, func() (any, error) {
		return r.fetchDocument(f.ctx, locator)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*document), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Resolver) join(ctx context.Context, locator string) *flight {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[locator]
	if !ok {
		r.nextID++
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.ResolveTimeout)
		f = &flight{
			key:    locator + "#" + strconv.FormatUint(r.nextID, 10),
			ctx:    fctx,
			cancel: cancel,
		}
		r.flights[locator] = f
	}
	f.waiters++
	return f
}

func (r *Resolver) leave(locator string, f *flight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if r.flights[locator] == f {
		delete(r.flights, locator)
	}
}

func (r *Resolver) fetchDocument(ctx context.Context, locator string) (*document, error) {
	docURL, err := url.Parse(locator)
	if err != nil {
		return nil, newError(ErrNoSourceReachable, locator, err)
	}

	var errs []error
	for _, src := range r.sources {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		var body []byte
		err := src.breaker.Do(func() error {
			var ferr error
			body, ferr = r.fetch(ctx, src.target(locator))
			return ferr
		})
		metrics.IncResolveSource(src.name, err == nil)
		if err == nil {
			return &document{body: body, url: docURL, source: src.name}, nil
		}

		r.logger.Debug().
			Err(err).
			Str(xglog.FieldEvent, "resolver.source_failed").
			Str(xglog.FieldSource, src.name).
			Str(xglog.FieldLocator, locator).
			Msg("document source failed")
		errs = append(errs, fmt.Errorf("%s: %w", src.name, err))
	}
	return nil, newError(ErrNoSourceReachable, locator, errors.Join(errs...))
}

func (r *Resolver) fetch(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// BreakerStates returns the state of each source breaker keyed by source name.
func (r *Resolver) BreakerStates() map[string]resilience.State {
	states := make(map[string]resilience.State, len(r.sources))
	for _, src := range r.sources {
		states[src.name] = src.breaker.State()
	}
	return states
}
