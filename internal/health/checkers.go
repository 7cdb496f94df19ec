// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/streamtier/internal/cache"
	"github.com/ManuGH/streamtier/internal/resilience"
)

// DefaultPingTimeout bounds a single backend ping.
const DefaultPingTimeout = 2 * time.Second

// PingChecker reports the reachability of an external cache backend.
type PingChecker struct {
	name    string
	pinger  cache.Pinger
	timeout time.Duration
}

// NewPingChecker creates a checker for a backend. A nil pinger (in-process
// backends) is always healthy.
func NewPingChecker(name string, pinger cache.Pinger, timeout time.Duration) *PingChecker {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	return &PingChecker{name: name, pinger: pinger, timeout: timeout}
}

func (c *PingChecker) Name() string {
	return c.name
}

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if c.pinger == nil {
		return CheckResult{Status: StatusHealthy, Message: "in-process backend"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.pinger.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// BreakerChecker reports resolver sources whose circuit breaker is not closed.
// An open breaker degrades service but does not make it unready: the other
// source may still answer.
type BreakerChecker struct {
	states func() map[string]resilience.State
}

// NewBreakerChecker creates a checker over a breaker state snapshot function.
func NewBreakerChecker(states func() map[string]resilience.State) *BreakerChecker {
	return &BreakerChecker{states: states}
}

func (c *BreakerChecker) Name() string {
	return "resolver_sources"
}

func (c *BreakerChecker) Check(_ context.Context) CheckResult {
	states := c.states()
	var tripped []string
	for name, st := range states {
		if st != resilience.StateClosed {
			tripped = append(tripped, fmt.Sprintf("%s=%s", name, st))
		}
	}
	if len(tripped) == 0 {
		return CheckResult{Status: StatusHealthy, Message: "all sources closed"}
	}
	sort.Strings(tripped)
	if len(tripped) == len(states) {
		return CheckResult{Status: StatusDegraded, Message: "all sources tripped: " + strings.Join(tripped, ", ")}
	}
	return CheckResult{Status: StatusDegraded, Message: strings.Join(tripped, ", ")}
}

// CapacityChecker degrades once the live session count reaches the limit.
type CapacityChecker struct {
	count func() int
	limit int
}

// NewCapacityChecker creates a session capacity checker. A limit of zero means unlimited.
func NewCapacityChecker(count func() int, limit int) *CapacityChecker {
	return &CapacityChecker{count: count, limit: limit}
}

func (c *CapacityChecker) Name() string {
	return "playback_sessions"
}

func (c *CapacityChecker) Check(_ context.Context) CheckResult {
	n := c.count()
	if c.limit > 0 && n >= c.limit {
		return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("%d/%d sessions, at capacity", n, c.limit)}
	}
	if c.limit > 0 {
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d/%d sessions", n, c.limit)}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d sessions", n)}
}
