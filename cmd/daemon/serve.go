// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/streamtier/internal/api"
	"github.com/ManuGH/streamtier/internal/cache"
	"github.com/ManuGH/streamtier/internal/config"
	"github.com/ManuGH/streamtier/internal/health"
	xglog "github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/probe"
	"github.com/ManuGH/streamtier/internal/proxy"
	"github.com/ManuGH/streamtier/internal/resolver"
	"github.com/ManuGH/streamtier/internal/session"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/ManuGH/streamtier/internal/telemetry"
	"github.com/ManuGH/streamtier/internal/tiercache"
	"github.com/ManuGH/streamtier/internal/version"
)

const (
	serviceName       = "streamtier"
	cachePingTimeout  = 2 * time.Second
	readHeaderTimeout = 5 * time.Second
	badgerGCInterval  = 10 * time.Minute
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the playback API server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

// configureLogging applies the logging section to the global logger.
func configureLogging(cfg config.LoggingConfig) {
	xglog.Configure(xglog.Config{
		Level:      cfg.Level,
		Service:    serviceName,
		Version:    version.Version,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
}

func runServe(ctx context.Context, opts *rootOptions) error {
	// Bootstrap logger until the configuration is known.
	xglog.Configure(xglog.Config{Level: "info", Service: serviceName, Version: version.Version})
	logger := xglog.WithComponent("daemon")

	cfg, loader, err := opts.load()
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "config.load_failed").Msg("failed to load configuration")
		return fmt.Errorf("load configuration: %w", err)
	}
	configureLogging(cfg.Logging)
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if loader.Path() != "" {
		source = "file"
	}
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", loader.Path()).
		Msg("configuration loaded")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(ctx, config.NewHolder(cfg, loader))
}

// app holds the wired daemon components.
type app struct {
	cfg      config.AppConfig
	logger   zerolog.Logger
	tracing  *telemetry.Provider
	backend  cacheBackend
	resolver *resolver.Resolver
	sessions *session.Manager
	server   *http.Server
}

func newApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	a := &app{cfg: cfg, logger: xglog.WithComponent("daemon")}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracing = tp

	backend, err := openCache(ctx, cfg.Cache)
	if err != nil {
		a.close()
		return nil, err
	}
	a.backend = backend
	tiers := tiercache.NewStore(backend.store, cfg.Playback.TierTTL, xglog.WithComponent("tiercache"))

	res, err := resolver.New(resolver.Config{
		DocumentMarkers:  cfg.Resolver.DocumentMarkers,
		FetchTimeout:     cfg.Resolver.FetchTimeout,
		ResolveTimeout:   cfg.Resolver.ResolveTimeout,
		BreakerThreshold: cfg.Resolver.BreakerThreshold,
		BreakerReset:     cfg.Resolver.BreakerReset,
	}, builderFor(cfg.Media), &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}, xglog.WithComponent("resolver"))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init resolver: %w", err)
	}
	a.resolver = res

	mediaClient := probe.NewHTTPClient()
	a.sessions = session.NewManager(session.ManagerConfig{
		Resolver: res,
		Tiers:    tiers,
		NewSink: func(native bool) probe.Sink {
			return probe.NewHTTPSink(mediaClient, native, xglog.WithComponent("probe"))
		},
		Clients:       probe.HLSFactory{Client: mediaClient, Logger: xglog.WithComponent("hls")},
		ProbeTimeout:  cfg.Playback.ProbeTimeout,
		BadgeDuration: cfg.Playback.BadgeDuration,
		IdleTimeout:   cfg.Playback.IdleTimeout,
		MaxSessions:   cfg.Playback.MaxSessions,
		Logger:        xglog.WithComponent("session"),
	})

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewPingChecker("tier_cache", backend.pinger, cachePingTimeout))
	hm.RegisterChecker(health.NewBreakerChecker(res.BreakerStates))
	hm.RegisterChecker(health.NewCapacityChecker(a.sessions.Len, cfg.Playback.MaxSessions))

	var proxyHandler http.Handler
	if cfg.Proxy.Enabled {
		proxyHandler = proxy.New(proxy.Config{
			Timeout:    cfg.Proxy.Timeout,
			Rate:       cfg.Proxy.Rate,
			Burst:      cfg.Proxy.Burst,
			ListenAddr: cfg.Server.ListenAddr,
			Logger:     xglog.WithComponent("proxy"),
		})
	}

	srv := api.New(api.Config{
		ServiceName: serviceName,
		RateLimit:   cfg.Server.RateLimit,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, a.sessions, hm, proxyHandler)

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	return a, nil
}

// builderFor maps the media section onto the tier address builder.
func builderFor(m config.MediaConfig) stream.Builder {
	return stream.Builder{
		MediaOrigin:      m.Origin,
		EdgeProxyBase:    m.EdgeProxyBase,
		BackendProxyBase: m.BackendProxyBase,
	}
}

// cacheBackend is the opened tier cache backend. pinger is nil for the
// in-process map; gc is set for backends that need periodic compaction.
type cacheBackend struct {
	store  cache.Store
	pinger cache.Pinger
	gc     func(context.Context)
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cacheBackend, error) {
	logger := xglog.WithComponent("cache")
	switch cfg.Backend {
	case config.CacheBackendRedis:
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, logger)
		if err != nil {
			return cacheBackend{}, fmt.Errorf("open redis cache: %w", err)
		}
		return cacheBackend{store: r, pinger: r}, nil
	case config.CacheBackendBadger:
		b, err := cache.NewBadger(cache.BadgerConfig{Dir: cfg.Badger.Dir}, logger)
		if err != nil {
			return cacheBackend{}, fmt.Errorf("open badger cache: %w", err)
		}
		return cacheBackend{
			store:  b,
			pinger: b,
			gc:     func(ctx context.Context) { b.RunGC(ctx, badgerGCInterval) },
		}, nil
	default:
		return cacheBackend{store: cache.NewMemory(time.Minute)}, nil
	}
}

// run serves until ctx ends, then drains sessions and shuts the server down.
func (a *app) run(ctx context.Context, holder *config.Holder) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().
			Str(xglog.FieldEvent, "startup").
			Str("version", version.Version).
			Str("commit", version.Commit).
			Str("build_date", version.Date).
			Str("addr", a.cfg.Server.ListenAddr).
			Str("edge_proxy", maskURL(a.cfg.Media.EdgeProxyBase)).
			Str("backend_proxy", maskURL(a.cfg.Media.BackendProxyBase)).
			Str("cache", a.cfg.Cache.Backend).
			Msg("starting streamtier")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Str(xglog.FieldEvent, "shutdown").Msg("shutting down")

		// Disposing sessions first ends open event streams.
		a.sessions.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		return nil
	})

	if a.backend.gc != nil {
		g.Go(func() error {
			a.backend.gc(gctx)
			return nil
		})
	}

	updates := make(chan config.AppConfig, 1)
	holder.RegisterListener(updates)
	if err := holder.StartWatcher(gctx); err != nil {
		a.logger.Warn().Err(err).Msg("config hot reload unavailable")
	}
	g.Go(func() error {
		applyReloads(gctx, a.cfg.Logging, updates)
		return nil
	})

	return g.Wait()
}

// applyReloads applies settings that can change at runtime. Everything else
// needs a restart.
func applyReloads(ctx context.Context, current config.LoggingConfig, updates <-chan config.AppConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-updates:
			if next.Logging == current {
				continue
			}
			current = next.Logging
			configureLogging(current)
			logger := xglog.WithComponent("daemon")
			logger.Info().
				Str(xglog.FieldEvent, "config.reload_applied").
				Str("level", current.Level).
				Msg("logging reconfigured")
		}
	}
}

func (a *app) close() {
	if a.backend.store != nil {
		if err := a.backend.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close tier cache")
		}
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}
}
