// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamtier/internal/cascade"
	"github.com/ManuGH/streamtier/internal/config"
	xglog "github.com/ManuGH/streamtier/internal/log"
	"github.com/ManuGH/streamtier/internal/probe"
	"github.com/ManuGH/streamtier/internal/resolver"
	"github.com/ManuGH/streamtier/internal/stream"
	"github.com/ManuGH/streamtier/internal/tiercache"
)

var errExhausted = errors.New("all streaming tiers failed")

type resolveOptions struct {
	locator   string
	title     string
	nativeHLS bool
	noClient  bool
}

func newResolveCommand(root *rootOptions) *cobra.Command {
	opts := &resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a watch reference once and run the tier cascade",
		Long: `Resolves the media address behind --url, derives the three tier
addresses and runs one cascade against them, printing every transition
and the final outcome. The tier cache is not persisted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			xglog.Configure(xglog.Config{Level: "warn", Output: cmd.ErrOrStderr(), Service: serviceName})
			return runResolve(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.locator, "url", "", "watch page or media address")
	cmd.Flags().StringVar(&opts.title, "title", "", "display title")
	cmd.Flags().BoolVar(&opts.nativeHLS, "native-hls", false, "treat the sink as able to play HLS without a streaming client")
	cmd.Flags().BoolVar(&opts.noClient, "no-client", false, "disable the HLS streaming client")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runResolve(ctx context.Context, out io.Writer, cfg config.AppConfig, opts *resolveOptions) error {
	ref := stream.WatchReference{
		Locator: strings.TrimSpace(opts.locator),
		Title:   stream.NormalizeTitle(opts.title),
	}

	res, err := resolver.New(resolver.Config{
		DocumentMarkers:  cfg.Resolver.DocumentMarkers,
		FetchTimeout:     cfg.Resolver.FetchTimeout,
		ResolveTimeout:   cfg.Resolver.ResolveTimeout,
		BreakerThreshold: cfg.Resolver.BreakerThreshold,
		BreakerReset:     cfg.Resolver.BreakerReset,
	}, builderFor(cfg.Media), &http.Client{}, xglog.WithComponent("resolver"))
	if err != nil {
		return err
	}

	addrs, err := res.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", maskURL(ref.Locator), err)
	}
	fmt.Fprintf(out, "direct:        %s\n", addrs.Direct)
	fmt.Fprintf(out, "edge proxy:    %s\n", addrs.EdgeProxy)
	fmt.Fprintf(out, "backend proxy: %s\n", addrs.BackendProxy)

	client := probe.NewHTTPClient()
	sink := probe.NewHTTPSink(client, opts.nativeHLS, xglog.WithComponent("probe"))
	defer sink.Release()

	ctrl := cascade.New(cascade.Config{
		Sink:         sink,
		Clients:      probe.HLSFactory{Client: client, Disabled: opts.noClient, Logger: xglog.WithComponent("hls")},
		Cache:        tiercache.NewMemory(),
		ProbeTimeout: cfg.Playback.ProbeTimeout,
		OnTransition: func(s cascade.State) {
			fmt.Fprintf(out, "-> %s\n", s)
		},
		Logger: xglog.WithComponent("cascade"),
	})

	outcome, err := ctrl.Run(ctx, addrs)
	if err != nil {
		return err
	}
	if outcome.Client != nil {
		outcome.Client.Destroy()
	}
	if !outcome.Playing() {
		fmt.Fprintln(out, "outcome: exhausted")
		return errExhausted
	}
	fmt.Fprintf(out, "outcome: playing on %s (%s)\n", outcome.Tier, outcome.Address)
	return nil
}
