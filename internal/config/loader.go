// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/streamtier/internal/log"
)

// Loader builds an AppConfig from defaults, an optional YAML file and the
// environment, in that order of increasing precedence.
type Loader struct {
	configPath string
	version    string
	env        *envOverlay
}

// NewLoader creates a loader. An empty configPath means environment-only
// configuration.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
		env:        newEnvOverlay(log.WithComponent("config")),
	}
}

// Path returns the config file path, which may be empty.
func (l *Loader) Path() string { return l.configPath }

// EnvKeys lists the environment variables the last Load consulted.
func (l *Loader) EnvKeys() []string { return l.env.Keys() }

// Load builds the configuration: defaults, then the YAML file, then the
// environment. The result is validated before it is returned.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.mergeFile(&cfg, l.configPath); err != nil {
			return AppConfig{}, fmt.Errorf("load config file: %w", err)
		}
	}
	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// mergeFile decodes the YAML file over cfg with STRICT parsing.
// Keys absent from the file keep their current value; unknown keys are fatal.
func (l *Loader) mergeFile(cfg *AppConfig, path string) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnv applies STREAMTIER_* overrides on top of cfg.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	e := l.env
	s := &cfg.Server
	s.ListenAddr = e.str("LISTEN_ADDR", s.ListenAddr)
	s.ReadTimeout = e.duration("READ_TIMEOUT", s.ReadTimeout)
	s.IdleTimeout = e.duration("IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = e.duration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.RateLimit = e.integer("RATE_LIMIT", s.RateLimit)
	s.CORSOrigins = e.list("CORS_ORIGINS", s.CORSOrigins)

	lg := &cfg.Logging
	lg.Level = e.str("LOG_LEVEL", lg.Level)
	lg.File = e.str("LOG_FILE", lg.File)

	m := &cfg.Media
	m.Origin = e.str("MEDIA_ORIGIN", m.Origin)
	m.EdgeProxyBase = e.str("EDGE_PROXY_BASE", m.EdgeProxyBase)
	m.BackendProxyBase = e.str("BACKEND_PROXY_BASE", m.BackendProxyBase)

	r := &cfg.Resolver
	r.DocumentMarkers = e.list("DOCUMENT_MARKERS", r.DocumentMarkers)
	r.FetchTimeout = e.duration("FETCH_TIMEOUT", r.FetchTimeout)
	r.ResolveTimeout = e.duration("RESOLVE_TIMEOUT", r.ResolveTimeout)
	r.BreakerThreshold = e.integer("BREAKER_THRESHOLD", r.BreakerThreshold)
	r.BreakerReset = e.duration("BREAKER_RESET", r.BreakerReset)

	p := &cfg.Playback
	p.ProbeTimeout = e.duration("PROBE_TIMEOUT", p.ProbeTimeout)
	p.BadgeDuration = e.duration("BADGE_DURATION", p.BadgeDuration)
	p.IdleTimeout = e.duration("SESSION_IDLE_TIMEOUT", p.IdleTimeout)
	p.MaxSessions = e.integer("MAX_SESSIONS", p.MaxSessions)
	p.TierTTL = e.duration("TIER_TTL", p.TierTTL)

	c := &cfg.Cache
	c.Backend = e.str("CACHE_BACKEND", c.Backend)
	c.Redis.Addr = e.str("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = e.str("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = e.integer("REDIS_DB", c.Redis.DB)
	c.Redis.Prefix = e.str("REDIS_PREFIX", c.Redis.Prefix)
	c.Badger.Dir = e.str("BADGER_DIR", c.Badger.Dir)

	px := &cfg.Proxy
	px.Enabled = e.boolean("PROXY_ENABLED", px.Enabled)
	px.Rate = e.float("PROXY_RATE", px.Rate)
	px.Burst = e.integer("PROXY_BURST", px.Burst)
	px.Timeout = e.duration("PROXY_TIMEOUT", px.Timeout)

	t := &cfg.Telemetry
	t.Enabled = e.boolean("TELEMETRY_ENABLED", t.Enabled)
	t.Environment = e.str("ENVIRONMENT", t.Environment)
	t.ExporterType = e.str("OTLP_EXPORTER", t.ExporterType)
	t.Endpoint = e.str("OTLP_ENDPOINT", t.Endpoint)
	t.Insecure = e.boolean("OTLP_INSECURE", t.Insecure)
	t.SamplingRate = e.float("TRACE_SAMPLING_RATE", t.SamplingRate)
}
