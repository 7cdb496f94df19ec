// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamtier/internal/hls"
)

// maxManifestBytes caps how much of a playlist is read.
const maxManifestBytes = 2 << 20

// Streaming client error details.
const (
	DetailManifestLoad    = "manifestLoadError"
	DetailManifestParsing = "manifestParsingError"
	DetailLevelLoad       = "levelLoadError"
	DetailLevelParsing    = "levelParsingError"
)

// HLSFactory builds HLSClients.
type HLSFactory struct {
	Client   *http.Client
	Disabled bool
	Logger   zerolog.Logger
}

// Supported implements ClientFactory.
func (f HLSFactory) Supported() bool { return !f.Disabled }

// New implements ClientFactory. The sink loads the committed address itself,
// so the client only validates playlists and never touches it.
func (f HLSFactory) New(Sink) StreamClient {
	client := f.Client
	if client == nil {
		client = NewHTTPClient()
	}
	return &HLSClient{
		http:   client,
		loads:  make(map[uint64]context.CancelFunc),
		logger: f.Logger.With().Str("component", "hls_client").Logger(),
	}
}

// HLSClient loads a playlist and, for a master playlist, its first variant.
type HLSClient struct {
	http   *http.Client
	logger zerolog.Logger

	mu        sync.Mutex
	loads     map[uint64]context.CancelFunc
	nextLoad  uint64
	destroyed bool
	manifest  *hls.Manifest
}

// Load implements StreamClient.
func (c *HLSClient) Load(ctx context.Context, addr string) <-chan Event {
	out := make(chan Event, 1)

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		out <- Event{Kind: EventError, Type: ErrTypeNetwork, Detail: "client destroyed"}
		return out
	}
	ctx, cancel := context.WithCancel(ctx)
	c.nextLoad++
	id := c.nextLoad
	c.loads[id] = cancel
	c.mu.Unlock()

	go func() {
		defer c.settle(id)
		ev := c.load(ctx, addr)
		if ctx.Err() != nil {
			return
		}
		out <- ev
	}()
	return out
}

// settle cancels and forgets one load.
func (c *HLSClient) settle(id uint64) {
	c.mu.Lock()
	cancel, ok := c.loads[id]
	delete(c.loads, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *HLSClient) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.loads)
}

func (c *HLSClient) load(ctx context.Context, addr string) Event {
	base, err := url.Parse(addr)
	if err != nil {
		return Event{Kind: EventError, Type: ErrTypeNetwork, Detail: DetailManifestLoad}
	}

	m, ev, ok := c.fetch(ctx, base, DetailManifestLoad, DetailManifestParsing)
	if !ok {
		return ev
	}

	if m.Kind == hls.KindMaster {
		ref, err := url.Parse(m.Variants[0].URI)
		if err != nil {
			return Event{Kind: EventError, Type: ErrTypeNetwork, Detail: DetailLevelLoad}
		}
		if m, ev, ok = c.fetch(ctx, base.ResolveReference(ref), DetailLevelLoad, DetailLevelParsing); !ok {
			return ev
		}
	}

	c.mu.Lock()
	c.manifest = m
	c.mu.Unlock()

	c.logger.Debug().
		Str("url", addr).
		Int("segments", len(m.Segments)).
		Bool("vod", m.IsVOD).
		Msg("manifest parsed")
	return Ready()
}

func (c *HLSClient) fetch(ctx context.Context, u *url.URL, loadDetail, parseDetail string) (*hls.Manifest, Event, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, Event{Kind: EventError, Type: ErrTypeNetwork, Detail: loadDetail}, false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Event{Kind: EventError, Type: ErrTypeNetwork, Detail: loadDetail}, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Event{
			Kind:   EventError,
			Type:   ErrTypeNetwork,
			Detail: fmt.Sprintf("%s: status %d", loadDetail, resp.StatusCode),
		}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, Event{Kind: EventError, Type: ErrTypeNetwork, Detail: loadDetail}, false
	}

	m, err := hls.Parse(string(body))
	if err != nil {
		return nil, Event{Kind: EventError, Type: ErrTypeMedia, Detail: parseDetail + ": " + err.Error()}, false
	}
	return m, Event{}, true
}

// Manifest returns the media playlist parsed by the last successful load.
func (c *HLSClient) Manifest() *hls.Manifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manifest
}

// Destroy implements StreamClient.
func (c *HLSClient) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}
	c.destroyed = true
	for id, cancel := range c.loads {
		cancel()
		delete(c.loads, id)
	}
	c.manifest = nil
}
