// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceFromQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      url.Values
		wantErr    bool
		wantResume *float64
	}{
		{
			name:  "minimal",
			query: url.Values{"url": {"https://svc/watch/abc"}},
		},
		{
			name:       "with resume",
			query:      url.Values{"url": {"https://svc/watch/abc"}, "t": {"42.5"}},
			wantResume: ptr(42.5),
		},
		{
			name:    "missing locator",
			query:   url.Values{"title": {"X"}},
			wantErr: true,
		},
		{
			name:    "relative locator",
			query:   url.Values{"url": {"/watch/abc"}},
			wantErr: true,
		},
		{
			name:    "ftp locator",
			query:   url.Values{"url": {"ftp://svc/watch/abc"}},
			wantErr: true,
		},
		{
			name:    "negative resume",
			query:   url.Values{"url": {"https://svc/watch/abc"}, "t": {"-3"}},
			wantErr: true,
		},
		{
			name:    "garbage resume",
			query:   url.Values{"url": {"https://svc/watch/abc"}, "t": {"soon"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ReferenceFromQuery(tt.query)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.query.Get("url"), ref.Locator)
			assert.Equal(t, tt.wantResume, ref.ResumeOffsetSeconds)
		})
	}
}

func TestReferenceFromQuery_TitleAndMediaID(t *testing.T) {
	// "e" + combining acute accent must normalise to the precomposed form.
	ref, err := ReferenceFromQuery(url.Values{
		"url":     {"https://svc/watch/abc"},
		"title":   {"  Cafe\u0301  "},
		"movieId": {"m1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9", ref.Title)
	assert.Equal(t, "m1", ref.MediaID)
}

func ptr(f float64) *float64 { return &f }
