// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ResolvedAddresses are the three tier-specific addresses derived from one
// resolved media address.
type ResolvedAddresses struct {
	Direct       string `json:"direct"`
	EdgeProxy    string `json:"edgeProxy"`
	BackendProxy string `json:"backendProxy"`
}

// For returns the address for tier t.
func (a ResolvedAddresses) For(t Tier) string {
	switch t {
	case TierDirect:
		return a.Direct
	case TierEdgeProxy:
		return a.EdgeProxy
	case TierBackendProxy:
		return a.BackendProxy
	default:
		return ""
	}
}

// IsAdaptive reports whether the media is a segmented (HLS) manifest.
func (a ResolvedAddresses) IsAdaptive() bool {
	return IsAdaptiveAddress(a.Direct)
}

// IsAdaptiveAddress checks the address path, then the raw string, for the
// HLS manifest extension.
func IsAdaptiveAddress(addr string) bool {
	if u, err := url.Parse(addr); err == nil {
		if strings.HasSuffix(strings.ToLower(u.Path), ".m3u8") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(addr), ".m3u8")
}

// Builder derives tier addresses from a single media address.
type Builder struct {
	// MediaOrigin prefixes root-relative media addresses (e.g. "https://cdn.example").
	MediaOrigin string
	// EdgeProxyBase and BackendProxyBase accept the upstream address as ?url=.
	EdgeProxyBase    string
	BackendProxyBase string
}

// Build normalises mediaURL and wraps it for each proxy tier.
func (b Builder) Build(mediaURL string) (ResolvedAddresses, error) {
	direct, err := b.Normalize(mediaURL, nil)
	if err != nil {
		return ResolvedAddresses{}, err
	}
	if b.EdgeProxyBase == "" || b.BackendProxyBase == "" {
		return ResolvedAddresses{}, errors.New("stream: proxy bases not configured")
	}
	return ResolvedAddresses{
		Direct:       direct,
		EdgeProxy:    WrapProxy(b.EdgeProxyBase, direct),
		BackendProxy: WrapProxy(b.BackendProxyBase, direct),
	}, nil
}

// Normalize turns an extracted media address into an absolute URL.
// Protocol-relative addresses get https; root-relative addresses get
// MediaOrigin, or the document origin when MediaOrigin is empty; anything
// else relative resolves against the document.
func (b Builder) Normalize(raw string, document *url.URL) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("stream: empty media address")
	}

	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw, nil
	case strings.HasPrefix(raw, "/"):
		if origin := strings.TrimRight(b.MediaOrigin, "/"); origin != "" {
			return origin + raw, nil
		}
		if document != nil {
			ref, err := url.Parse(raw)
			if err != nil {
				return "", fmt.Errorf("stream: parse media address: %w", err)
			}
			return document.ResolveReference(ref).String(), nil
		}
		return "", fmt.Errorf("stream: root-relative media address %q without origin", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("stream: parse media address: %w", err)
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("stream: unsupported media scheme %q", u.Scheme)
		}
		return u.String(), nil
	}
	if document == nil {
		return "", fmt.Errorf("stream: relative media address %q without document", raw)
	}
	return document.ResolveReference(u).String(), nil
}

// WrapProxy returns base with upstream appended as the url query parameter.
func WrapProxy(base, upstream string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "url=" + url.QueryEscape(upstream)
}
