// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier_StringRoundTrip(t *testing.T) {
	for _, tier := range CascadeOrder {
		parsed, ok := ParseTier(tier.String())
		require.True(t, ok, tier.String())
		assert.Equal(t, tier, parsed)
	}

	_, ok := ParseTier("carrier_pigeon")
	assert.False(t, ok)
}

func TestTier_Cacheable(t *testing.T) {
	assert.True(t, TierDirect.Cacheable())
	assert.True(t, TierEdgeProxy.Cacheable())
	assert.False(t, TierBackendProxy.Cacheable())
	assert.False(t, Tier(42).Cacheable())
}

func TestCascadeOrder_IsPreferenceOrder(t *testing.T) {
	require.Len(t, CascadeOrder, 3)
	for i := 1; i < len(CascadeOrder); i++ {
		assert.Less(t, CascadeOrder[i-1], CascadeOrder[i])
	}
}

func TestTier_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Tier Tier `json:"tier"`
	}{TierEdgeProxy})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"edge_proxy"}`, string(data))

	var out struct {
		Tier Tier `json:"tier"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tier":"backend_proxy"}`), &out))
	assert.Equal(t, TierBackendProxy, out.Tier)

	assert.Error(t, json.Unmarshal([]byte(`{"tier":"nope"}`), &out))
}
