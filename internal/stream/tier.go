// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stream holds the playback domain types shared by the resolver,
// the cascade controller and the playback session.
package stream

import (
	"encoding/json"
	"fmt"
)

// Tier is a delivery path for one media address. Lower values are preferred.
type Tier int

const (
	// TierDirect fetches the media address as-is.
	TierDirect Tier = iota
	// TierEdgeProxy wraps the media address in the edge proxy.
	TierEdgeProxy
	// TierBackendProxy wraps the media address in the backend proxy. It is the
	// unconditional last resort and is never stored as a cached preference.
	TierBackendProxy
)

// CascadeOrder is the fixed order in which tiers are attempted.
var CascadeOrder = []Tier{TierDirect, TierEdgeProxy, TierBackendProxy}

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierEdgeProxy:
		return "edge_proxy"
	case TierBackendProxy:
		return "backend_proxy"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t >= TierDirect && t <= TierBackendProxy
}

// Cacheable reports whether t may be remembered as a session preference.
func (t Tier) Cacheable() bool {
	return t == TierDirect || t == TierEdgeProxy
}

// ParseTier parses the string form produced by Tier.String.
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "direct":
		return TierDirect, true
	case "edge_proxy":
		return TierEdgeProxy, true
	case "backend_proxy":
		return TierBackendProxy, true
	default:
		return 0, false
	}
}

func (t Tier) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("stream: invalid tier %d", int(t))
	}
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseTier(s)
	if !ok {
		return fmt.Errorf("stream: unknown tier %q", s)
	}
	*t = parsed
	return nil
}
