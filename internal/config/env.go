// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "STREAMTIER_"

// envOverlay applies STREAMTIER_* variables over already-loaded values.
// Unset and empty variables keep the current value, as do values that fail
// to parse (with a warning).
type envOverlay struct {
	logger zerolog.Logger
	keys   map[string]struct{}
}

func newEnvOverlay(logger zerolog.Logger) *envOverlay {
	return &envOverlay{logger: logger, keys: make(map[string]struct{})}
}

// Keys lists every variable name consulted, set or not.
func (e *envOverlay) Keys() []string {
	out := make([]string, 0, len(e.keys))
	for k := range e.keys {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func overlay[T any](e *envOverlay, name string, current T, parse func(string) (T, error)) T {
	key := EnvPrefix + name
	e.keys[key] = struct{}{}

	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return current
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("key", key).
			Str("value", redactEnv(key, raw)).
			Msg("ignoring invalid environment override")
		return current
	}
	e.logger.Debug().
		Str("key", key).
		Str("value", redactEnv(key, raw)).
		Msg("environment override applied")
	return v
}

func redactEnv(key, value string) string {
	k := strings.ToLower(key)
	if strings.Contains(k, "password") || strings.Contains(k, "token") || strings.Contains(k, "secret") {
		return "***"
	}
	return value
}

func (e *envOverlay) str(name, current string) string {
	return overlay(e, name, current, func(s string) (string, error) { return s, nil })
}

func (e *envOverlay) integer(name string, current int) int {
	return overlay(e, name, current, strconv.Atoi)
}

func (e *envOverlay) float(name string, current float64) float64 {
	return overlay(e, name, current, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (e *envOverlay) duration(name string, current time.Duration) time.Duration {
	return overlay(e, name, current, time.ParseDuration)
}

func (e *envOverlay) boolean(name string, current bool) bool {
	return overlay(e, name, current, parseBool)
}

func (e *envOverlay) list(name string, current []string) []string {
	return overlay(e, name, current, parseList)
}

// parseBool also accepts yes/no and on/off, case-insensitively.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// parseList splits on commas, trimming items and dropping empty ones.
func parseList(s string) ([]string, error) {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no items in %q", s)
	}
	return out, nil
}
