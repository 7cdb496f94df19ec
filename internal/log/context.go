// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type correlationKey struct{}

// correlation is the set of IDs a request or playback session carries into
// every log line written on its behalf.
type correlation struct {
	requestID string
	sessionID string
	scope     string
}

func correlationFrom(ctx context.Context) correlation {
	if ctx == nil {
		return correlation{}
	}
	c, _ := ctx.Value(correlationKey{}).(correlation)
	return c
}

func withCorrelation(ctx context.Context, update func(*correlation)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := correlationFrom(ctx)
	update(&c)
	return context.WithValue(ctx, correlationKey{}, c)
}

// ContextWithRequestID stores the HTTP request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.requestID = id })
}

// ContextWithSessionID stores the playback session ID in the context.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.sessionID = id })
}

// ContextWithScope stores the browsing-session scope in the context.
func ContextWithScope(ctx context.Context, scope string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.scope = scope })
}

func RequestIDFromContext(ctx context.Context) string { return correlationFrom(ctx).requestID }

func SessionIDFromContext(ctx context.Context) string { return correlationFrom(ctx).sessionID }

// WithContext adds the correlation IDs in ctx, and the trace ID of an active
// span, to logger. The logger is returned unchanged when there are none.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	c := correlationFrom(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if c == (correlation{}) && !sc.IsValid() {
		return logger
	}

	b := logger.With()
	for _, f := range [...]struct{ key, val string }{
		{FieldRequestID, c.requestID},
		{FieldSessionID, c.sessionID},
		{FieldScope, c.scope},
	} {
		if f.val != "" {
			b = b.Str(f.key, f.val)
		}
	}
	if sc.IsValid() {
		b = b.Str(FieldTraceID, sc.TraceID().String())
	}
	return b.Logger()
}

// WithComponentFromContext is WithContext over WithComponent(component).
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
