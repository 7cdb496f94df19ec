// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cascade walks the delivery tiers for one playback and settles on the
// first one that plays.
//
// Progressive media tries the remembered tier first, then Direct and
// EdgeProxy, and finally assigns BackendProxy without probing it. Adaptive
// media probes all three tiers with a fresh streaming client each, or hands
// EdgeProxy straight to a sink that plays HLS natively. Attempts are strictly
// sequential and every step observes the run's context.
package cascade

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/metrics"
	"github.com/ManuGH/streamtier/internal/probe"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/ManuGH/streamtier/internal/telemetry"
	"github.com/ManuGH/streamtier/internal/tiercache"
)

const (
	engineProgressive = "progressive"
	engineAdaptive    = "adaptive"
	engineNone        = "unprobed"
)

// Config wires a Controller to one playback session.
type Config struct {
	Sink         probe.Sink
	Clients      probe.ClientFactory
	Cache        tiercache.Cache
	ProbeTimeout time.Duration
	// OnTransition, if set, is called synchronously on every state change.
	OnTransition func(State)
	Logger       zerolog.Logger
}

// Controller runs cascades. A Controller belongs to one playback session and
// runs one cascade at a time.
type Controller struct {
	sink         probe.Sink
	clients      probe.ClientFactory
	cache        tiercache.Cache
	timeout      time.Duration
	onTransition func(State)
	logger       zerolog.Logger
	tracer       trace.Tracer
	state        State
}

// New creates a Controller.
func New(cfg Config) *Controller {
	clients := cfg.Clients
	if clients == nil {
		clients = probe.HLSFactory{Disabled: true}
	}
	return &Controller{
		sink:         cfg.Sink,
		clients:      clients,
		cache:        cfg.Cache,
		timeout:      cfg.ProbeTimeout,
		onTransition: cfg.OnTransition,
		logger:       cfg.Logger.With().Str(xglog.FieldComponent, "cascade").Logger(),
		tracer:       telemetry.Tracer("streamtier/cascade"),
		state:        State{Phase: PhaseIdle},
	}
}

// Run resolves addrs to a playing tier or exhaustion. It returns ctx.Err() if
// the context ends first; the tier cache is then left as it was and no
// streaming client survives.
func (c *Controller) Run(ctx context.Context, addrs stream.ResolvedAddresses) (Outcome, error) {
	adaptive := addrs.IsAdaptive()
	media := telemetry.MediaKind(adaptive)

	ctx, span := c.tracer.Start(ctx, "cascade.Run")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.PlaybackMediaKey, media))

	logger := xglog.WithContext(ctx, c.logger).With().Str(xglog.FieldMedia, media).Logger()

	var (
		out Outcome
		err error
	)
	if adaptive {
		out, err = c.runAdaptive(ctx, logger, addrs)
	} else {
		out, err = c.runProgressive(ctx, logger, addrs)
	}

	if err != nil {
		metrics.IncCascadeOutcome(media, "cancelled", "")
		telemetry.RecordError(span, err, "cancelled")
		logger.Debug().Err(err).Str(xglog.FieldEvent, "cascade.cancelled").Msg("cascade cancelled")
		return Outcome{}, err
	}

	if out.Kind == OutcomeExhausted {
		c.cache.Clear(ctx)
		c.transition(logger, State{Phase: PhaseExhausted})
		metrics.IncCascadeOutcome(media, out.Kind.String(), "")
		span.SetAttributes(attribute.String(telemetry.CascadeStateKey, string(PhaseExhausted)))
		logger.Warn().Str(xglog.FieldEvent, "cascade.exhausted").Msg("all streaming tiers failed")
		return out, nil
	}

	c.transition(logger, State{Phase: PhasePlaying, Tier: out.Tier})
	metrics.IncCascadeOutcome(media, out.Kind.String(), out.Tier.String())
	span.SetAttributes(
		attribute.String(telemetry.CascadeStateKey, string(PhasePlaying)),
		attribute.String(telemetry.TierKey, out.Tier.String()),
	)
	logger.Info().
		Str(xglog.FieldEvent, "cascade.playing").
		Str(xglog.FieldTier, out.Tier.String()).
		Msg("playback tier selected")
	return out, nil
}

func (c *Controller) runProgressive(ctx context.Context, logger zerolog.Logger, addrs stream.ResolvedAddresses) (Outcome, error) {
	if cached, ok := c.cache.Get(ctx); ok && cached.Cacheable() {
		c.transition(logger, State{Phase: PhaseTryingCached, Tier: cached})
		addr := addrs.For(cached)
		err := c.probeProgressive(ctx, logger, cached, addr)
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		if err == nil {
			if aerr := c.assign(logger, cached, addr); aerr == nil {
				c.cache.Set(ctx, cached)
				return Outcome{Kind: OutcomePlaying, Tier: cached, Address: addr}, nil
			}
		}
		c.cache.Clear(ctx)
	}

	for _, tier := range []stream.Tier{stream.TierDirect, stream.TierEdgeProxy} {
		c.transition(logger, State{Phase: PhaseTrying, Tier: tier})
		addr := addrs.For(tier)
		err := c.probeProgressive(ctx, logger, tier, addr)
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		if err != nil {
			continue
		}
		if aerr := c.assign(logger, tier, addr); aerr != nil {
			continue
		}
		c.cache.Set(ctx, tier)
		return Outcome{Kind: OutcomePlaying, Tier: tier, Address: addr}, nil
	}

	// BackendProxy is the last resort and is assigned without a probe.
	c.transition(logger, State{Phase: PhaseTrying, Tier: stream.TierBackendProxy})
	metrics.ObserveProbe(stream.TierBackendProxy.String(), engineNone, "ok", 0)
	if err := c.assign(logger, stream.TierBackendProxy, addrs.BackendProxy); err != nil {
		return Outcome{Kind: OutcomeExhausted}, nil
	}
	return Outcome{Kind: OutcomePlaying, Tier: stream.TierBackendProxy, Address: addrs.BackendProxy}, nil
}

func (c *Controller) runAdaptive(ctx context.Context, logger zerolog.Logger, addrs stream.ResolvedAddresses) (Outcome, error) {
	if !c.clients.Supported() {
		if !c.sink.NativeAdaptive() {
			logger.Warn().
				Str(xglog.FieldEvent, "cascade.unsupported").
				Msg("no streaming client and no native HLS support")
			return Outcome{Kind: OutcomeExhausted}, nil
		}
		// Native playback gets a single unprobed attempt on EdgeProxy.
		c.transition(logger, State{Phase: PhaseTrying, Tier: stream.TierEdgeProxy})
		metrics.ObserveProbe(stream.TierEdgeProxy.String(), engineNone, "ok", 0)
		if err := c.assign(logger, stream.TierEdgeProxy, addrs.EdgeProxy); err != nil {
			return Outcome{Kind: OutcomeExhausted}, nil
		}
		return Outcome{Kind: OutcomePlaying, Tier: stream.TierEdgeProxy, Address: addrs.EdgeProxy}, nil
	}

	for _, tier := range stream.CascadeOrder {
		c.transition(logger, State{Phase: PhaseTrying, Tier: tier})
		addr := addrs.For(tier)
		client, err := c.probeAdaptive(ctx, logger, tier, addr)
		if ctx.Err() != nil {
			if client != nil {
				client.Destroy()
			}
			return Outcome{}, ctx.Err()
		}
		if err != nil {
			continue
		}
		if aerr := c.assign(logger, tier, addr); aerr != nil {
			client.Destroy()
			continue
		}
		if tier.Cacheable() {
			c.cache.Set(ctx, tier)
		}
		return Outcome{Kind: OutcomePlaying, Tier: tier, Address: addr, Client: client}, nil
	}

	return Outcome{Kind: OutcomeExhausted}, nil
}

func (c *Controller) probeProgressive(ctx context.Context, logger zerolog.Logger, tier stream.Tier, addr string) error {
	ctx, span := c.tracer.Start(ctx, "cascade.probe")
	defer span.End()

	start := time.Now()
	err := probe.Progressive{Sink: c.sink, Timeout: c.timeout}.Probe(ctx, addr)
	c.observe(span, logger, tier, engineProgressive, err, time.Since(start))
	return err
}

func (c *Controller) probeAdaptive(ctx context.Context, logger zerolog.Logger, tier stream.Tier, addr string) (probe.StreamClient, error) {
	ctx, span := c.tracer.Start(ctx, "cascade.probe")
	defer span.End()

	start := time.Now()
	client, err := probe.Adaptive{Clients: c.clients, Sink: c.sink, Timeout: c.timeout}.Probe(ctx, addr)
	c.observe(span, logger, tier, engineAdaptive, err, time.Since(start))
	return client, err
}

func (c *Controller) observe(span trace.Span, logger zerolog.Logger, tier stream.Tier, engine string, err error, d time.Duration) {
	result := probe.Reason(err)
	metrics.ObserveProbe(tier.String(), engine, result, d)
	span.SetAttributes(telemetry.ProbeAttributes(tier.String(), engine, result)...)
	if err == nil {
		return
	}
	telemetry.RecordError(span, err, result)
	logger.Debug().
		Err(err).
		Str(xglog.FieldEvent, "cascade.tier_failed").
		Str(xglog.FieldTier, tier.String()).
		Str(xglog.FieldEngine, engine).
		Str(xglog.FieldReason, result).
		Dur(xglog.FieldDuration, d).
		Msg("tier probe failed")
}

func (c *Controller) assign(logger zerolog.Logger, tier stream.Tier, addr string) error {
	err := c.sink.Assign(addr)
	if err != nil {
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "cascade.assign_rejected").
			Str(xglog.FieldTier, tier.String()).
			Msg("sink rejected tier address")
	}
	return err
}

func (c *Controller) transition(logger zerolog.Logger, next State) {
	prev := c.state
	c.state = next
	logger.Debug().
		Str(xglog.FieldEvent, "cascade.transition").
		Str(xglog.FieldOldState, prev.String()).
		Str(xglog.FieldNewState, next.String()).
		Msg("cascade state changed")
	if c.onTransition != nil {
		c.onTransition(next)
	}
}
