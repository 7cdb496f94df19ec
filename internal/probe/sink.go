// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// sniffBytes is how much of the media a trial load reads.
const sniffBytes = 4096

// HTTPSink performs the readiness checks of a media element over HTTP: a
// ranged GET of the first bytes and a content sniff.
type HTTPSink struct {
	client *http.Client
	logger zerolog.Logger
	native bool

	mu       sync.Mutex
	addr     string
	released bool
}

// NewHTTPSink creates a sink. native marks the sink as able to play HLS
// without a streaming client.
func NewHTTPSink(client *http.Client, native bool, logger zerolog.Logger) *HTTPSink {
	if client == nil {
		client = NewHTTPClient()
	}
	return &HTTPSink{
		client: client,
		logger: logger.With().Str("component", "sink").Logger(),
		native: native,
	}
}

// Load implements Sink.
func (s *HTTPSink) Load(ctx context.Context, addr string) <-chan Event {
	out := make(chan Event, 1)

	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		out <- Event{Kind: EventError, Code: MediaErrAborted, Detail: ErrReleased.Error()}
		return out
	}

	go func() {
		ev := s.trialLoad(ctx, addr)
		if ctx.Err() != nil {
			return
		}
		out <- ev
	}()
	return out
}

func (s *HTTPSink) trialLoad(ctx context.Context, addr string) Event {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return Event{Kind: EventError, Code: MediaErrSrcNotSupported, Detail: err.Error()}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", sniffBytes-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return Event{Kind: EventError, Code: MediaErrNetwork, Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return Event{Kind: EventError, Code: MediaErrNetwork, Detail: fmt.Sprintf("upstream status %d", resp.StatusCode)}
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, sniffBytes))
	if err != nil {
		return Event{Kind: EventError, Code: MediaErrNetwork, Detail: err.Error()}
	}

	detected := mimetype.Detect(head)
	if isPlayableMIME(detected.String()) {
		return Ready()
	}
	if ct, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && isPlayableMIME(ct) {
		return Ready()
	}

	s.logger.Debug().
		Str("url", addr).
		Str("detected", detected.String()).
		Str("content_type", resp.Header.Get("Content-Type")).
		Msg("trial load returned non-media content")
	return Event{Kind: EventError, Code: MediaErrSrcNotSupported, Detail: "unsupported content " + detected.String()}
}

func isPlayableMIME(m string) bool {
	m = strings.ToLower(m)
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return strings.HasPrefix(m, "video/") || strings.HasPrefix(m, "audio/")
}

// Assign implements Sink.
func (s *HTTPSink) Assign(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("probe: assign: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("probe: assign: unsupported scheme %q", u.Scheme)
	}
	s.addr = addr
	return nil
}

// Address implements Sink.
func (s *HTTPSink) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// NativeAdaptive implements Sink.
func (s *HTTPSink) NativeAdaptive() bool { return s.native }

// Release implements Sink.
func (s *HTTPSink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.addr = ""
}
