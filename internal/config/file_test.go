// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefault_RoundTripsThroughLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "streamtier.yaml")
	require.NoError(t, WriteDefault(path, false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "probeTimeout: 6s")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	if diff := cmp.Diff(Defaults(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("written defaults differ (-want +got):\n%s", diff)
	}
}

func TestWriteDefault_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streamtier.yaml")
	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0o600))

	err := WriteDefault(path, false)
	require.ErrorIs(t, err, ErrConfigExists)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "# mine\n", string(data))

	require.NoError(t, WriteDefault(path, true))
	data, _ = os.ReadFile(path)
	assert.Contains(t, string(data), "listenAddr")
}
