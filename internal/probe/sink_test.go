// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mp4Head is the start of an ISO BMFF file: an ftyp box with brand isom.
var mp4Head = []byte{
	0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2',
	'a', 'v', 'c', '1', 'm', 'p', '4', '1',
}

func newTestSink() *HTTPSink {
	return NewHTTPSink(&http.Client{}, false, zerolog.Nop())
}

func TestHTTPSink_TrialLoad(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie.mp4":
			gotRange = r.Header.Get("Range")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(mp4Head)
		case "/typed":
			w.Header().Set("Content-Type", "video/mp2t; charset=binary")
			_, _ = w.Write([]byte{0x01, 0x02, 0x03})
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>not media</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		path     string
		wantKind EventKind
		wantCode int
	}{
		{path: "/movie.mp4", wantKind: EventReady},
		{path: "/typed", wantKind: EventReady},
		{path: "/page", wantKind: EventError, wantCode: MediaErrSrcNotSupported},
		{path: "/missing", wantKind: EventError, wantCode: MediaErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			sink := newTestSink()
			select {
			case ev := <-sink.Load(context.Background(), srv.URL+tt.path):
				assert.Equal(t, tt.wantKind, ev.Kind)
				assert.Equal(t, tt.wantCode, ev.Code)
			case <-time.After(2 * time.Second):
				t.Fatal("no event")
			}
		})
	}
	assert.Equal(t, "bytes=0-4095", gotRange)
}

func TestHTTPSink_UnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/x.mp4"
	srv.Close()

	ev := <-newTestSink().Load(context.Background(), target)
	assert.Equal(t, EventError, ev.Kind)
	assert.Equal(t, MediaErrNetwork, ev.Code)
}

func TestHTTPSink_AssignAndRelease(t *testing.T) {
	sink := NewHTTPSink(nil, true, zerolog.Nop())
	assert.True(t, sink.NativeAdaptive())

	require.NoError(t, sink.Assign("https://cdn.example/a.mp4"))
	assert.Equal(t, "https://cdn.example/a.mp4", sink.Address())

	assert.Error(t, sink.Assign("ftp://cdn.example/a.mp4"))

	sink.Release()
	assert.Empty(t, sink.Address())
	assert.ErrorIs(t, sink.Assign("https://cdn.example/a.mp4"), ErrReleased)

	ev := <-sink.Load(context.Background(), "https://cdn.example/a.mp4")
	assert.Equal(t, MediaErrAborted, ev.Code)
}
