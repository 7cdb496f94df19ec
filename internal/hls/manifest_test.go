package hls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_MediaVOD(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-PLAYLIST-TYPE:VOD
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
segment1.ts
#EXTINF:9.5,title
segment2.ts
#EXT-X-ENDLIST`

	m, err := Parse(playlist)
	require.NoError(t, err)

	assert.Equal(t, KindMedia, m.Kind)
	assert.True(t, m.IsVOD)
	assert.Equal(t, 10*time.Second, m.TargetDuration)
	require.Len(t, m.Segments, 2)
	assert.Equal(t, "segment2.ts", m.Segments[1].URI)
	assert.Equal(t, 19500*time.Millisecond, m.TotalDuration)
}

func TestParse_LiveIsNotVOD(t *testing.T) {
	m, err := Parse("#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6,\nlive1.ts\n")
	require.NoError(t, err)
	assert.False(t, m.IsVOD)
}

func TestParse_Master(t *testing.T) {
	playlist := "\uFEFF#EXTM3U\n" +
		`#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720,CODECS="avc1.4d401f,mp4a.40.2"` + "\n" +
		"720p/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=640000\n" +
		"360p/index.m3u8\n"

	m, err := Parse(playlist)
	require.NoError(t, err)

	assert.Equal(t, KindMaster, m.Kind)
	require.Len(t, m.Variants, 2)
	assert.Equal(t, Variant{
		URI:        "720p/index.m3u8",
		Bandwidth:  1280000,
		Resolution: "1280x720",
		Codecs:     "avc1.4d401f,mp4a.40.2",
	}, m.Variants[0])
	assert.Equal(t, 640000, m.Variants[1].Bandwidth)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		playlist string
		sentinel error
	}{
		{name: "html page", playlist: "<html><body>nope</body></html>", sentinel: ErrNotManifest},
		{name: "empty", playlist: "", sentinel: ErrNotManifest},
		{name: "header only", playlist: "#EXTM3U\n#EXT-X-VERSION:3\n", sentinel: ErrEmptyManifest},
		{name: "bad extinf", playlist: "#EXTM3U\n#EXTINF:abc,\nseg.ts\n"},
		{name: "segment without extinf", playlist: "#EXTM3U\nseg.ts\n"},
		{name: "bad bandwidth", playlist: "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=lots\nv.m3u8\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.playlist)
			require.Error(t, err)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestParseAttributes(t *testing.T) {
	attrs := ParseAttributes(`METHOD=AES-128,URI="https://k.example/key?a=1,b=2",IV=0x1234`)
	assert.Equal(t, map[string]string{
		"METHOD": "AES-128",
		"URI":    "https://k.example/key?a=1,b=2",
		"IV":     "0x1234",
	}, attrs)

	assert.Empty(t, ParseAttributes(""))
}
