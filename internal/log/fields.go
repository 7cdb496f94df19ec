// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldScope     = "scope"
	FieldRequestID = "request_id"
	FieldMediaID   = "media_id"
	FieldTraceID   = "trace_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Cascade fields
	FieldTier     = "tier"
	FieldEngine   = "engine"
	FieldMedia    = "media"
	FieldOutcome  = "outcome"
	FieldReason   = "reason"
	FieldSource   = "source"
	FieldDuration = "duration"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// URL fields
	FieldURL      = "url"
	FieldLocator  = "locator"
	FieldUpstream = "upstream"
)
