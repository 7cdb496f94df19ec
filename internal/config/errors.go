// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

// Load and init failures callers branch on with errors.Is.
var (
	// ErrUnknownConfigField wraps strict YAML decoding failures, usually a
	// misspelt key.
	ErrUnknownConfigField = errors.New("unknown config field")
	// ErrUnsupportedFormat rejects config files without a .yaml/.yml extension.
	ErrUnsupportedFormat = errors.New("unsupported config format")
	// ErrConfigExists stops WriteDefault from overwriting a file without force.
	ErrConfigExists = errors.New("config file already exists")
)
