package audio

import (
	"bufio"
	"errors"
	"strconv"
	"strings"
)

// ErrNotManifest is returned when the input does not start with the
// #EXTM3U marker.
var ErrNotManifest = errors.New("not an hls manifest")

// ManifestKind distinguishes the two HLS playlist types.
type ManifestKind int

const (
	// MasterManifest lists variant streams at different bitrates.
	MasterManifest ManifestKind = iota

	// MediaManifest lists the actual media segments.
	MediaManifest
)

// Variant is one stream option in a master manifest.
type Variant struct {
	Bandwidth int
	URI       string
}

// Manifest is a parsed HLS playlist, either master or media.
type Manifest struct {
	Kind           ManifestKind
	Variants       []Variant
	SegmentCount   int
	TargetDuration int
}

// ParseManifest parses an m3u8 playlist body.
//
// Master manifests (containing #EXT-X-STREAM-INF) yield the variant
// list with bandwidths; media manifests yield the segment count and
// target duration. Returns ErrNotManifest when the body lacks the
// #EXTM3U header, which is how Probe decides a resolved URL is
// actually playable.
func ParseManifest(body string) (*Manifest, error) {
	scanner := bufio.NewScanner(strings.NewReader(body))
	if !scanner.Scan() || !strings.HasPrefix(strings.TrimSpace(scanner.Text()), "#EXTM3U") {
		return nil, ErrNotManifest
	}

	m := &Manifest{Kind: MediaManifest}
	var pendingBandwidth int
	var pendingVariant bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
			m.Kind = MasterManifest
			pendingBandwidth = attrInt(line, "BANDWIDTH")
			pendingVariant = true

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			if v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:")); err == nil {
				m.TargetDuration = v
			}

		case strings.HasPrefix(line, "#EXTINF:"):
			m.SegmentCount++

		case line == "" || strings.HasPrefix(line, "#"):
			// Other tags and blanks are ignored.

		default:
			// A bare line is a URI: a variant after #EXT-X-STREAM-INF,
			// a segment otherwise. Segments are already counted via
			// their #EXTINF tag.
			if pendingVariant {
				m.Variants = append(m.Variants, Variant{Bandwidth: pendingBandwidth, URI: line})
				pendingVariant = false
			}
		}
	}
	return m, scanner.Err()
}

// attrInt extracts an integer attribute like BANDWIDTH=128000 from an
// HLS tag line.
func attrInt(line, name string) int {
	idx := strings.Index(line, name+"=")
	if idx < 0 {
		return 0
	}
	rest := line[idx+len(name)+1:]
	end := strings.IndexAny(rest, ",\t ")
	if end >= 0 {
		rest = rest[:end]
	}
	v, _ := strconv.Atoi(rest)
	return v
}

// BestVariant returns the highest-bandwidth variant of a master
// manifest, or false for media manifests.
func (m *Manifest) BestVariant() (Variant, bool) {
	if m.Kind != MasterManifest || len(m.Variants) == 0 {
		return Variant{}, false
	}
	best := m.Variants[0]
	for _, v := range m.Variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, true
}
