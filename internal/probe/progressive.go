// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"time"
)

// Progressive probes whole-file media with a trial load on the sink.
type Progressive struct {
	Sink    Sink
	Timeout time.Duration
}

// Probe returns nil once the sink reports the address ready. It returns a
// *Failure on a sink error or timeout and ctx.Err() on cancellation.
func (p Progressive) Probe(ctx context.Context, addr string) error {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := time.NewTimer(timeoutOrDefault(p.Timeout))
	defer timer.Stop()

	events := p.Sink.Load(probeCtx, addr)

	select {
	case ev := <-events:
		if ev.Kind == EventReady {
			return nil
		}
		return &Failure{Kind: SinkError, Code: ev.Code, Detail: ev.Detail}
	case <-timer.C:
		return &Failure{Kind: TimedOut}
	case <-ctx.Done():
		return ctx.Err()
	}
}
