// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Cache backends for the tier cache.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendBadger = "badger"
)

// AppConfig is the complete runtime configuration.
type AppConfig struct {
	// Version is the build version. It is not read from the file.
	Version string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Media     MediaConfig     `yaml:"media"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Cache     CacheConfig     `yaml:"cache"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the number of API requests allowed per client IP and minute. Zero disables limiting.
	RateLimit   int      `yaml:"rateLimit"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// MediaConfig holds the addresses tier addresses are derived from.
type MediaConfig struct {
	// Origin prefixes root-relative media addresses.
	Origin           string `yaml:"origin"`
	EdgeProxyBase    string `yaml:"edgeProxyBase"`
	BackendProxyBase string `yaml:"backendProxyBase"`
}

// ResolverConfig configures watch-document resolution.
type ResolverConfig struct {
	DocumentMarkers  []string      `yaml:"documentMarkers"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	ResolveTimeout   time.Duration `yaml:"resolveTimeout"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// PlaybackConfig configures sessions and the tier cascade.
type PlaybackConfig struct {
	ProbeTimeout  time.Duration `yaml:"probeTimeout"`
	BadgeDuration time.Duration `yaml:"badgeDuration"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	MaxSessions   int           `yaml:"maxSessions"`
	TierTTL       time.Duration `yaml:"tierTTL"`
}

// CacheConfig selects the tier cache backend.
type CacheConfig struct {
	Backend string       `yaml:"backend"`
	Redis   RedisConfig  `yaml:"redis"`
	Badger  BadgerConfig `yaml:"badger"`
}

// RedisConfig configures the shared Redis tier cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// BadgerConfig configures the embedded tier cache.
type BadgerConfig struct {
	Dir string `yaml:"dir"`
}

// ProxyConfig configures the built-in backend proxy.
type ProxyConfig struct {
	Enabled bool `yaml:"enabled"`
	// Rate is the sustained upstream request rate per second.
	Rate    float64       `yaml:"rate"`
	Burst   int           `yaml:"burst"`
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Environment  string  `yaml:"environment"`
	ExporterType string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}
