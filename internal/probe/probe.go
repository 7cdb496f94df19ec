// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe confirms that a tier address is playable within a bounded time.
//
// Two engines exist. Progressive checks a whole-file address with a trial load
// on the media sink. Adaptive attaches a segmented streaming client to the sink
// and waits for the manifest to parse. Both settle exactly once: the first of
// readiness, failure, timeout or cancellation wins.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single probe attempt.
const DefaultTimeout = 6 * time.Second

// Media error codes reported by sinks, numbered like the HTML media element.
const (
	MediaErrAborted         = 1
	MediaErrNetwork         = 2
	MediaErrDecode          = 3
	MediaErrSrcNotSupported = 4
)

// Streaming client error types.
const (
	ErrTypeNetwork = "networkError"
	ErrTypeMedia   = "mediaError"
)

// ErrReleased is returned by a sink that has already been released.
var ErrReleased = errors.New("probe: sink released")

// EventKind is the outcome carried by an Event.
type EventKind int

const (
	EventReady EventKind = iota + 1
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted once by a sink or client load.
type Event struct {
	Kind   EventKind
	Code   int    // sink media error code
	Type   string // client error type
	Detail string
}

// Ready returns a readiness event.
func Ready() Event { return Event{Kind: EventReady} }

// Sink is the media output a playback session owns for its whole lifetime.
type Sink interface {
	// Load performs a trial load of addr. The channel yields one event, or
	// nothing if ctx is cancelled first.
	Load(ctx context.Context, addr string) <-chan Event
	// Assign commits addr as the playback source.
	Assign(addr string) error
	// Address returns the committed address.
	Address() string
	// NativeAdaptive reports whether the sink plays HLS without a client.
	NativeAdaptive() bool
	// Release frees the sink. Later calls to Load and Assign fail.
	Release()
}

// StreamClient loads segmented media into a sink. Each client is owned by
// exactly one probe attempt until the attempt succeeds.
type StreamClient interface {
	// Load fetches and parses the manifest at addr. The channel yields
	// EventReady once parsed or EventError on a fatal error.
	Load(ctx context.Context, addr string) <-chan Event
	// Destroy tears the client down. It is safe to call more than once.
	Destroy()
}

// ClientFactory constructs streaming clients.
type ClientFactory interface {
	Supported() bool
	New(sink Sink) StreamClient
}

// FailureKind classifies a failed probe.
type FailureKind int

const (
	SinkError FailureKind = iota + 1
	ClientFatalError
	TimedOut
)

func (k FailureKind) String() string {
	switch k {
	case SinkError:
		return "sink_error"
	case ClientFatalError:
		return "client_fatal_error"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Failure describes why a probe did not confirm its address.
type Failure struct {
	Kind   FailureKind
	Code   int
	Type   string
	Detail string
}

func (f *Failure) Error() string {
	switch f.Kind {
	case TimedOut:
		return "probe: timed out"
	case SinkError:
		if f.Detail != "" {
			return fmt.Sprintf("probe: sink error %d: %s", f.Code, f.Detail)
		}
		return fmt.Sprintf("probe: sink error %d", f.Code)
	default:
		if f.Detail != "" {
			return fmt.Sprintf("probe: client %s: %s", f.Type, f.Detail)
		}
		return fmt.Sprintf("probe: client %s", f.Type)
	}
}

// Reason returns a short label for logs and metrics.
func Reason(err error) string {
	if err == nil {
		return "ok"
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind.String()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}
