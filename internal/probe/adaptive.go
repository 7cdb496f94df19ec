// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"time"
)

// Adaptive probes segmented media by attaching a fresh streaming client.
type Adaptive struct {
	Clients ClientFactory
	Sink    Sink
	Timeout time.Duration
}

// Probe constructs a client, loads addr and waits for the manifest. On
// success the live client is returned and the caller owns it. Every other
// exit destroys the client before returning.
func (a Adaptive) Probe(ctx context.Context, addr string) (StreamClient, error) {
	client := a.Clients.New(a.Sink)
	owned := false
	defer func() {
		if !owned {
			client.Destroy()
		}
	}()

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := time.NewTimer(timeoutOrDefault(a.Timeout))
	defer timer.Stop()

	events := client.Load(probeCtx, addr)

	select {
	case ev := <-events:
		if ev.Kind == EventReady {
			owned = true
			return client, nil
		}
		return nil, &Failure{Kind: ClientFatalError, Type: ev.Type, Detail: ev.Detail}
	case <-timer.C:
		return nil, &Failure{Kind: TimedOut}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
