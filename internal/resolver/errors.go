// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resolver

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNoSourceReachable = errors.New("resolver: no source could fetch the watch document")
	ErrNoMediaFound      = errors.New("resolver: watch document has no media address")
	ErrTimeout           = errors.New("resolver: resolution timed out")
)

// Error wraps a sentinel with the locator it concerns and the underlying cause.
type Error struct {
	Kind    error
	Locator string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v (locator %s)", e.Kind, e.Locator)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Code returns a stable identifier for the error kind, used in metrics and API bodies.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNoSourceReachable):
		return "no_source_reachable"
	case errors.Is(err, ErrNoMediaFound):
		return "no_media_found"
	default:
		return "error"
	}
}

func newError(kind error, locator string, cause error) *Error {
	return &Error{Kind: kind, Locator: locator, Err: cause}
}
