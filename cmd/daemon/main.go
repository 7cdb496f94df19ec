// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command streamtier serves playback sessions that resolve watch references
// and select a streaming tier (direct, edge proxy, backend proxy).
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamtier/internal/config"
	xglog "github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/version"
)

const defaultConfigFile = "config.yaml"

// rootOptions are flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFiles   []string
}

// maskURL removes user credentials from a URL for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

// effectiveConfigPath picks the --config flag, then STREAMTIER_CONFIG, then a
// config.yaml in the working directory. Empty means ENV-only configuration.
func (o *rootOptions) effectiveConfigPath() string {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(config.EnvPrefix + "CONFIG")); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

// load reads .env files and the layered configuration.
func (o *rootOptions) load() (config.AppConfig, *config.Loader, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return config.AppConfig{}, nil, err
	}
	loader := config.NewLoader(o.effectiveConfigPath(), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	return cfg, loader, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "streamtier",
		Short:         "Playback stream resolver and tier cascade service",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.SetVersionTemplate(version.String() + "\n")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML configuration file")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")

	root.AddCommand(
		newServeCommand(opts),
		newResolveCommand(opts),
		newConfigCommand(opts),
		newHealthcheckCommand(),
		newVersionCommand(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	_ = xglog.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
