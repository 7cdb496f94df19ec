// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cascade

import (
	"fmt"

	"github.com/ManuGH/streamtier/internal/probe"
	"github.com/ManuGH/streamtier/internal/stream"
)

// Phase is the controller's position in a run.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseTryingCached Phase = "trying_cached"
	PhaseTrying       Phase = "trying"
	PhasePlaying      Phase = "playing"
	PhaseExhausted    Phase = "exhausted"
)

// State is reported on every transition. Tier is meaningful for the trying
// and playing phases only.
type State struct {
	Phase Phase
	Tier  stream.Tier
}

func (s State) String() string {
	switch s.Phase {
	case PhaseTryingCached, PhaseTrying, PhasePlaying:
		return fmt.Sprintf("%s(%s)", s.Phase, s.Tier)
	default:
		return string(s.Phase)
	}
}

// OutcomeKind is the terminal result of a run.
type OutcomeKind int

const (
	OutcomePlaying OutcomeKind = iota + 1
	OutcomeExhausted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePlaying:
		return "playing"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome is what a completed run produced. Client is the live streaming
// client for adaptive media played through a client, nil otherwise; the
// caller owns it and must destroy it.
type Outcome struct {
	Kind    OutcomeKind
	Tier    stream.Tier
	Address string
	Client  probe.StreamClient
}

// Playing reports whether the run settled on a tier.
func (o Outcome) Playing() bool { return o.Kind == OutcomePlaying }
