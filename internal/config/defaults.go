// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"slices"
	"time"

	"github.com/ManuGH/streamtier/internal/probe"
	"github.com/ManuGH/streamtier/internal/resolver"
	"github.com/ManuGH/streamtier/internal/session"
	"github.com/ManuGH/streamtier/internal/tiercache"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:      ":8088",
			ReadTimeout:     10 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       120,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Media: MediaConfig{
			EdgeProxyBase:    "http://localhost:8088/proxy",
			BackendProxyBase: "http://localhost:8088/proxy",
		},
		Resolver: ResolverConfig{
			DocumentMarkers:  slices.Clone(resolver.DefaultDocumentMarkers),
			FetchTimeout:     resolver.DefaultFetchTimeout,
			ResolveTimeout:   resolver.DefaultResolveTimeout,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Playback: PlaybackConfig{
			ProbeTimeout:  probe.DefaultTimeout,
			BadgeDuration: session.DefaultBadgeDuration,
			IdleTimeout:   30 * time.Minute,
			MaxSessions:   256,
			TierTTL:       tiercache.DefaultTTL,
		},
		Cache: CacheConfig{
			Backend: CacheBackendMemory,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "streamtier:",
			},
			Badger: BadgerConfig{Dir: "data/tiercache"},
		},
		Proxy: ProxyConfig{
			Enabled: true,
			Rate:    20,
			Burst:   40,
			Timeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Environment:  "production",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			Insecure:     true,
			SamplingRate: 1.0,
		},
	}
}
