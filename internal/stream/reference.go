// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidReference is returned for watch references that cannot be played.
var ErrInvalidReference = errors.New("stream: invalid watch reference")

// Query parameter names carried on a playback view's address.
const (
	ParamLocator = "url"
	ParamTitle   = "title"
	ParamMediaID = "movieId"
	ParamResume  = "t"
)

// WatchReference is the UI's request to play something. It is consumed once
// per playback attempt and never mutated.
type WatchReference struct {
	Locator             string   `json:"locator"`
	Title               string   `json:"title"`
	MediaID             string   `json:"mediaId"`
	ResumeOffsetSeconds *float64 `json:"resumeOffsetSeconds,omitempty"`
}

// ReferenceFromQuery builds a WatchReference from playback view query parameters.
func ReferenceFromQuery(q url.Values) (WatchReference, error) {
	ref := WatchReference{
		Locator: strings.TrimSpace(q.Get(ParamLocator)),
		Title:   NormalizeTitle(q.Get(ParamTitle)),
		MediaID: strings.TrimSpace(q.Get(ParamMediaID)),
	}

	if raw := strings.TrimSpace(q.Get(ParamResume)); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return WatchReference{}, fmt.Errorf("%w: resume offset %q", ErrInvalidReference, raw)
		}
		ref.ResumeOffsetSeconds = &secs
	}

	if err := ref.Validate(); err != nil {
		return WatchReference{}, err
	}
	return ref, nil
}

// Validate checks that the locator is a non-empty absolute http(s) address.
func (r WatchReference) Validate() error {
	if r.Locator == "" {
		return fmt.Errorf("%w: empty locator", ErrInvalidReference)
	}
	u, err := url.Parse(r.Locator)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: locator must be an absolute http(s) URL", ErrInvalidReference)
	}
	return nil
}

// NormalizeTitle trims a display title and converts it to NFC so titles
// composed by different clients compare equal.
func NormalizeTitle(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
