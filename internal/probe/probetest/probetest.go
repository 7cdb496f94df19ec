// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probetest provides scripted sinks and streaming clients for tests.
package probetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/streamtier/internal/probe"
)

// Script describes how a load of one address behaves.
type Script struct {
	Delay time.Duration
	Event probe.Event
	// Hang never emits an event; only cancellation or a timeout ends the load.
	Hang bool
}

// ReadyAfter returns a script that reports readiness after d.
func ReadyAfter(d time.Duration) Script {
	return Script{Delay: d, Event: probe.Ready()}
}

// SinkErrorAfter returns a script that reports a media error after d.
func SinkErrorAfter(d time.Duration, code int) Script {
	return Script{Delay: d, Event: probe.Event{Kind: probe.EventError, Code: code}}
}

// FatalAfter returns a script that reports a fatal client error after d.
func FatalAfter(d time.Duration) Script {
	return Script{Delay: d, Event: probe.Event{Kind: probe.EventError, Type: probe.ErrTypeNetwork, Detail: probe.DetailManifestLoad}}
}

// Hang returns a script that never settles.
func Hang() Script { return Script{Hang: true} }

// Journal records calls in order across fakes.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

// Add appends an entry.
func (j *Journal) Add(entry string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
}

// Entries returns a copy of all entries.
func (j *Journal) Entries() []string {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func play(ctx context.Context, s Script, out chan<- probe.Event) {
	if s.Hang {
		<-ctx.Done()
		return
	}
	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
		out <- s.Event
	}
}

// Sink is a scripted probe.Sink. Addresses without a script hang.
type Sink struct {
	Scripts map[string]Script
	Native  bool
	// RejectAssign lists addresses Assign refuses.
	RejectAssign map[string]bool
	Journal      *Journal

	mu       sync.Mutex
	loads    []string
	assigned string
	released int
	wg       sync.WaitGroup
}

var _ probe.Sink = (*Sink)(nil)

// ErrRejected is returned by Assign for addresses in RejectAssign.
var ErrRejected = errors.New("probetest: assign rejected")

// Load implements probe.Sink.
func (s *Sink) Load(ctx context.Context, addr string) <-chan probe.Event {
	s.mu.Lock()
	s.loads = append(s.loads, addr)
	script, ok := s.Scripts[addr]
	s.mu.Unlock()
	s.Journal.Add("sink.load " + addr)

	if !ok {
		script = Hang()
	}
	out := make(chan probe.Event, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		play(ctx, script, out)
	}()
	return out
}

// Assign implements probe.Sink.
func (s *Sink) Assign(addr string) error {
	s.Journal.Add("sink.assign " + addr)
	if s.RejectAssign[addr] {
		return ErrRejected
	}
	s.mu.Lock()
	s.assigned = addr
	s.mu.Unlock()
	return nil
}

// Address implements probe.Sink.
func (s *Sink) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assigned
}

// NativeAdaptive implements probe.Sink.
func (s *Sink) NativeAdaptive() bool { return s.Native }

// Release implements probe.Sink.
func (s *Sink) Release() {
	s.Journal.Add("sink.release")
	s.mu.Lock()
	s.released++
	s.assigned = ""
	s.mu.Unlock()
}

// Loads returns the addresses trial-loaded so far.
func (s *Sink) Loads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loads...)
}

// Released returns how many times Release was called.
func (s *Sink) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Wait blocks until all load goroutines have returned.
func (s *Sink) Wait() { s.wg.Wait() }

// Factory is a scripted probe.ClientFactory. Addresses without a script hang.
type Factory struct {
	Unsupported bool
	Scripts     map[string]Script
	Journal     *Journal

	mu        sync.Mutex
	clients   []*Client
	destroyed int
	wg        sync.WaitGroup
}

var _ probe.ClientFactory = (*Factory)(nil)

// Supported implements probe.ClientFactory.
func (f *Factory) Supported() bool { return !f.Unsupported }

// New implements probe.ClientFactory.
func (f *Factory) New(probe.Sink) probe.StreamClient {
	f.mu.Lock()
	c := &Client{factory: f}
	f.clients = append(f.clients, c)
	f.mu.Unlock()
	f.Journal.Add("client.new")
	return c
}

// Constructed returns how many clients were created.
func (f *Factory) Constructed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Destroyed returns how many clients were destroyed. Repeated Destroy calls
// on one client count once.
func (f *Factory) Destroyed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

// Live returns how many clients exist and have not been destroyed.
func (f *Factory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients) - f.destroyed
}

// Wait blocks until all client load goroutines have returned.
func (f *Factory) Wait() { f.wg.Wait() }

// Client is a scripted probe.StreamClient.
type Client struct {
	factory   *Factory
	destroyed bool
}

// Load implements probe.StreamClient.
func (c *Client) Load(ctx context.Context, addr string) <-chan probe.Event {
	f := c.factory
	f.mu.Lock()
	script, ok := f.Scripts[addr]
	f.mu.Unlock()
	f.Journal.Add("client.load " + addr)

	if !ok {
		script = Hang()
	}
	out := make(chan probe.Event, 1)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		play(ctx, script, out)
	}()
	return out
}

// Destroy implements probe.StreamClient.
func (c *Client) Destroy() {
	f := c.factory
	f.mu.Lock()
	first := !c.destroyed
	if first {
		c.destroyed = true
		f.destroyed++
	}
	f.mu.Unlock()
	if first {
		f.Journal.Add("client.destroy")
	}
}

// Destroyed reports whether Destroy was called.
func (c *Client) Destroyed() bool {
	c.factory.mu.Lock()
	defer c.factory.mu.Unlock()
	return c.destroyed
}
