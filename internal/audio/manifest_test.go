package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=64000,CODECS="mp4a.40.2"
index_0_a.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=128000,CODECS="mp4a.40.2"
index_1_a.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=32000,CODECS="mp4a.40.2"
index_2_a.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:10.0,
segment0.aac
#EXTINF:10.0,
segment1.aac
#EXTINF:4.5,
segment2.aac
#EXT-X-ENDLIST
`

func TestParseManifest_Master(t *testing.T) {
	m, err := ParseManifest(masterPlaylist)
	require.NoError(t, err)

	assert.Equal(t, MasterManifest, m.Kind)
	require.Len(t, m.Variants, 3)
	assert.Equal(t, 64000, m.Variants[0].Bandwidth)
	assert.Equal(t, "index_0_a.m3u8", m.Variants[0].URI)

	best, ok := m.BestVariant()
	require.True(t, ok)
	assert.Equal(t, 128000, best.Bandwidth)
	assert.Equal(t, "index_1_a.m3u8", best.URI)
}

func TestParseManifest_Media(t *testing.T) {
	m, err := ParseManifest(mediaPlaylist)
	require.NoError(t, err)

	assert.Equal(t, MediaManifest, m.Kind)
	assert.Equal(t, 3, m.SegmentCount)
	assert.Equal(t, 10, m.TargetDuration)

	_, ok := m.BestVariant()
	assert.False(t, ok, "media manifests have no variants")
}

func TestParseManifest_NotAManifest(t *testing.T) {
	_, err := ParseManifest("<html>404 not found</html>")
	assert.ErrorIs(t, err, ErrNotManifest)

	_, err = ParseManifest("")
	assert.ErrorIs(t, err, ErrNotManifest)
}
