// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/streamtier/internal/validate"
)

// Validate checks cfg and returns validate.Errors listing every problem.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.NotEmpty("Server.ListenAddr", cfg.Server.ListenAddr)
	validate.Between(v, "Server.RateLimit", cfg.Server.RateLimit, 0, 1_000_000)
	validate.Between(v, "Server.ShutdownTimeout", cfg.Server.ShutdownTimeout, time.Second, 5*time.Minute)

	v.LogLevel("Logging.Level", cfg.Logging.Level)

	if cfg.Media.Origin != "" {
		v.URL("Media.Origin", cfg.Media.Origin, "http", "https")
	}
	v.ProxyBase("Media.EdgeProxyBase", cfg.Media.EdgeProxyBase)
	v.ProxyBase("Media.BackendProxyBase", cfg.Media.BackendProxyBase)

	if len(cfg.Resolver.DocumentMarkers) == 0 {
		v.Addf("Resolver.DocumentMarkers", cfg.Resolver.DocumentMarkers, "at least one marker is required")
	}
	validate.Between(v, "Resolver.FetchTimeout", cfg.Resolver.FetchTimeout, 100*time.Millisecond, time.Minute)
	validate.Between(v, "Resolver.ResolveTimeout", cfg.Resolver.ResolveTimeout, 100*time.Millisecond, 5*time.Minute)
	if cfg.Resolver.ResolveTimeout < cfg.Resolver.FetchTimeout {
		v.Addf("Resolver.ResolveTimeout", cfg.Resolver.ResolveTimeout, "must not be shorter than Resolver.FetchTimeout (%s)", cfg.Resolver.FetchTimeout)
	}
	validate.Between(v, "Resolver.BreakerThreshold", cfg.Resolver.BreakerThreshold, 1, 100)
	validate.Between(v, "Resolver.BreakerReset", cfg.Resolver.BreakerReset, time.Second, time.Hour)

	validate.Between(v, "Playback.ProbeTimeout", cfg.Playback.ProbeTimeout, 100*time.Millisecond, time.Minute)
	validate.Between(v, "Playback.BadgeDuration", cfg.Playback.BadgeDuration, 0, time.Minute)
	validate.Between(v, "Playback.IdleTimeout", cfg.Playback.IdleTimeout, 0, 24*time.Hour)
	validate.Between(v, "Playback.MaxSessions", cfg.Playback.MaxSessions, 0, 100000)
	validate.Between(v, "Playback.TierTTL", cfg.Playback.TierTTL, time.Minute, 30*24*time.Hour)

	v.OneOf("Cache.Backend", cfg.Cache.Backend, CacheBackendMemory, CacheBackendRedis, CacheBackendBadger)
	switch cfg.Cache.Backend {
	case CacheBackendRedis:
		v.NotEmpty("Cache.Redis.Addr", cfg.Cache.Redis.Addr)
		validate.Between(v, "Cache.Redis.DB", cfg.Cache.Redis.DB, 0, 15)
	case CacheBackendBadger:
		v.Directory("Cache.Badger.Dir", cfg.Cache.Badger.Dir)
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rate <= 0 {
			v.Addf("Proxy.Rate", cfg.Proxy.Rate, "must be positive when the proxy is enabled")
		}
		validate.Between(v, "Proxy.Burst", cfg.Proxy.Burst, 1, 10_000)
		validate.Between(v, "Proxy.Timeout", cfg.Proxy.Timeout, time.Second, 10*time.Minute)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.ExporterType", cfg.Telemetry.ExporterType, "grpc", "http")
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		validate.Between(v, "Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
