// SPDX-License-Identifier: MIT

// Package validate collects configuration problems so a single load reports
// all of them at once.
package validate

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// Problem is one rejected field.
type Problem struct {
	Field   string
	Value   any
	Message string
}

func (p Problem) String() string {
	return p.Field + ": " + p.Message
}

// Errors is the error returned by Validator.Err. Match it with errors.As.
type Errors []Problem

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, p := range e {
		parts[i] = p.String()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Validator accumulates problems. The zero value is ready to use.
type Validator struct {
	problems Errors
}

func New() *Validator { return &Validator{} }

// Addf records a problem with a formatted message.
func (v *Validator) Addf(field string, value any, format string, args ...any) {
	v.problems = append(v.problems, Problem{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

func (v *Validator) Problems() []Problem { return slices.Clone(v.problems) }

// Err returns nil when nothing was recorded, an Errors value otherwise.
func (v *Validator) Err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return slices.Clone(v.problems)
}

// Between checks lo <= value <= hi for any ordered type, durations included.
func Between[T cmp.Ordered](v *Validator, field string, value, lo, hi T) {
	if value < lo || value > hi {
		v.Addf(field, value, "must be between %v and %v, got %v", lo, hi, value)
	}
}

func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Addf(field, value, "must not be empty")
	}
}

func (v *Validator) OneOf(field, value string, allowed ...string) {
	if !slices.Contains(allowed, value) {
		v.Addf(field, value, "must be one of %s, got %q", strings.Join(allowed, ", "), value)
	}
}

// LogLevel accepts any level name zerolog understands, in any case.
func (v *Validator) LogLevel(field, value string) {
	if _, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value))); err != nil || strings.TrimSpace(value) == "" {
		v.Addf(field, value, "unknown log level %q", value)
	}
}

// URL checks for an absolute URL with a host and an allowed scheme. It
// reports whether value passed so callers can stack further checks.
func (v *Validator) URL(field, value string, schemes ...string) bool {
	if value == "" {
		v.Addf(field, value, "must not be empty")
		return false
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.Addf(field, value, "not a URL: %v", err)
		return false
	case u.Host == "":
		v.Addf(field, value, "URL has no host")
		return false
	case len(schemes) > 0 && !slices.Contains(schemes, u.Scheme):
		v.Addf(field, value, "scheme %q not allowed (want %s)", u.Scheme, strings.Join(schemes, " or "))
		return false
	}
	return true
}

// ProxyBase checks a proxy endpoint that receives the upstream address in
// its url query parameter: http(s), no fragment, no url parameter of its own.
func (v *Validator) ProxyBase(field, value string) {
	if !v.URL(field, value, "http", "https") {
		return
	}
	u, _ := url.Parse(value)
	if u.Fragment != "" {
		v.Addf(field, value, "proxy base must not have a fragment")
	}
	if u.Query().Has("url") {
		v.Addf(field, value, "proxy base already carries a url parameter")
	}
}

// Directory checks a data directory, creating it when missing.
func (v *Validator) Directory(field, path string) {
	if path == "" {
		v.Addf(field, path, "must not be empty")
		return
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		v.Addf(field, path, "must not contain '..'")
		return
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(path, 0o750); err != nil {
			v.Addf(field, path, "cannot create directory: %v", err)
		}
	case err != nil:
		v.Addf(field, path, "cannot access directory: %v", err)
	case !info.IsDir():
		v.Addf(field, path, "not a directory")
	}
}
