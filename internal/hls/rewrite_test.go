package hls

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrapForTest(abs string) string {
	return "https://proxy.example/p?url=" + url.QueryEscape(abs)
}

func TestRewrite_MediaPlaylist(t *testing.T) {
	base, _ := url.Parse("https://cdn.example/vod/movie/index.m3u8")
	playlist := `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-KEY:METHOD=AES-128,URI="keys/k1.bin"
#EXT-X-MAP:URI="/init.mp4"
#EXTINF:6,
seg1.ts
#EXTINF:6,
https://other.example/seg2.ts
#EXT-X-ENDLIST`

	out, err := Rewrite(playlist, base, wrapForTest)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, `#EXT-X-KEY:METHOD=AES-128,URI="`+wrapForTest("https://cdn.example/vod/movie/keys/k1.bin")+`"`, lines[2])
	assert.Equal(t, `#EXT-X-MAP:URI="`+wrapForTest("https://cdn.example/init.mp4")+`"`, lines[3])
	assert.Equal(t, wrapForTest("https://cdn.example/vod/movie/seg1.ts"), lines[5])
	assert.Equal(t, wrapForTest("https://other.example/seg2.ts"), lines[7])
	assert.Equal(t, "#EXT-X-ENDLIST", lines[8])

	// The rewritten playlist must still parse.
	m, err := Parse(out)
	require.NoError(t, err)
	assert.Len(t, m.Segments, 2)
}

func TestRewrite_KeepsDataURIs(t *testing.T) {
	base, _ := url.Parse("https://cdn.example/a/index.m3u8")
	playlist := "#EXTM3U\n#EXT-X-KEY:METHOD=SAMPLE-AES,URI=\"data:text/plain;base64,AAAA\"\n#EXTINF:4,\ns.ts\n"

	out, err := Rewrite(playlist, base, wrapForTest)
	require.NoError(t, err)
	assert.Contains(t, out, `URI="data:text/plain;base64,AAAA"`)
}

func TestRewrite_NeedsBase(t *testing.T) {
	_, err := Rewrite("#EXTM3U\n", nil, wrapForTest)
	assert.Error(t, err)
}
