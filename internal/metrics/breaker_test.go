// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetBreakerState_OneHot(t *testing.T) {
	SetBreakerState("direct", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerState.WithLabelValues("direct", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("direct", "closed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("direct", "half-open")))

	SetBreakerState("direct", "half-open")
	assert.Equal(t, 0.0, testutil.ToFloat64(breakerState.WithLabelValues("direct", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(breakerState.WithLabelValues("direct", "half-open")))
}

func TestRecordBreakerTrip_UnknownReasonFolded(t *testing.T) {
	before := testutil.ToFloat64(breakerTrips.WithLabelValues("catalog", "unknown"))
	RecordBreakerTrip("catalog", "something else")
	assert.Equal(t, before+1, testutil.ToFloat64(breakerTrips.WithLabelValues("catalog", "unknown")))
}

func TestIncBreakerRejected(t *testing.T) {
	before := testutil.ToFloat64(breakerRejected.WithLabelValues("catalog"))
	IncBreakerRejected("catalog")
	IncBreakerRejected("catalog")
	assert.Equal(t, before+2, testutil.ToFloat64(breakerRejected.WithLabelValues("catalog")))
}
