// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/streamtier/internal/config"
	"github.com/ManuGH/streamtier/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(logger, cfg.Server.ListenAddr); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}

	if cfg.Cache.Backend == config.CacheBackendBadger {
		if err := checkWritableDir(logger, cfg.Cache.Badger.Dir); err != nil {
			return fmt.Errorf("tier cache directory check failed: %w", err)
		}
	} else if cfg.Cache.Backend == config.CacheBackendMemory {
		logger.Warn().Msg("tier cache is in-memory; tier preferences are lost on restart")
	}

	if cfg.Logging.File != "" {
		if err := checkWritableDir(logger, filepath.Dir(cfg.Logging.File)); err != nil {
			return fmt.Errorf("log directory check failed: %w", err)
		}
	}

	if !cfg.Proxy.Enabled && cfg.Media.BackendProxyBase == config.Defaults().Media.BackendProxyBase {
		logger.Warn().
			Str("backend_proxy_base", cfg.Media.BackendProxyBase).
			Msg("built-in proxy disabled but backend proxy base still points at it")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Debug().Str("addr", addr).Msg("listen address is valid")
	return nil
}

func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().Str("path", path).Msg("directory is writable")
	return nil
}
