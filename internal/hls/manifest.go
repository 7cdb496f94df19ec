// Package hls parses and rewrites HLS playlists.
package hls

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotManifest is returned when the payload lacks the #EXTM3U header.
	ErrNotManifest = errors.New("hls: missing #EXTM3U header")
	// ErrEmptyManifest is returned when a playlist has neither variants nor segments.
	ErrEmptyManifest = errors.New("hls: playlist has no variants or segments")
)

// Kind distinguishes master (multivariant) from media playlists.
type Kind int

const (
	KindMedia Kind = iota
	KindMaster
)

func (k Kind) String() string {
	if k == KindMaster {
		return "master"
	}
	return "media"
}

// Variant is one #EXT-X-STREAM-INF entry of a master playlist.
type Variant struct {
	URI        string
	Bandwidth  int
	Resolution string
	Codecs     string
}

// Segment is one media segment of a media playlist.
type Segment struct {
	URI      string
	Duration time.Duration
}

// Manifest is the parsed form of a playlist.
type Manifest struct {
	Kind           Kind
	Variants       []Variant
	Segments       []Segment
	TargetDuration time.Duration
	TotalDuration  time.Duration
	IsVOD          bool // #EXT-X-PLAYLIST-TYPE:VOD or #EXT-X-ENDLIST
}

// Parse parses a master or media playlist. It fails on a missing header,
// malformed EXTINF/STREAM-INF values, or a playlist with nothing to play.
func Parse(playlist string) (*Manifest, error) {
	scanner := bufio.NewScanner(strings.NewReader(playlist))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	m := &Manifest{}

	var (
		sawHeader    bool
		hasEndList   bool
		typeVOD      bool
		nextDuration time.Duration
		haveExtInf   bool
		pending      *Variant
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !sawHeader {
			// Tolerate a UTF-8 BOM before the header.
			if strings.TrimPrefix(line, "\uFEFF") != "#EXTM3U" {
				return nil, ErrNotManifest
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
			typeVOD = strings.TrimPrefix(line, "#EXT-X-PLAYLIST-TYPE:") == "VOD"
		case line == "#EXT-X-ENDLIST":
			hasEndList = true
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			secs, err := strconv.ParseFloat(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"), 64)
			if err != nil {
				return nil, fmt.Errorf("hls: invalid target duration: %s", line)
			}
			m.TargetDuration = seconds(secs)
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := ParseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			v := Variant{Resolution: attrs["RESOLUTION"], Codecs: attrs["CODECS"]}
			if bw, ok := attrs["BANDWIDTH"]; ok {
				n, err := strconv.Atoi(bw)
				if err != nil {
					return nil, fmt.Errorf("hls: invalid BANDWIDTH %q", bw)
				}
				v.Bandwidth = n
			}
			pending = &v
		case strings.HasPrefix(line, "#EXTINF:"):
			durPart := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(durPart, ","); idx != -1 {
				durPart = durPart[:idx]
			}
			secs, err := strconv.ParseFloat(durPart, 64)
			if err != nil {
				return nil, fmt.Errorf("hls: invalid EXTINF duration: %s", durPart)
			}
			nextDuration = seconds(secs)
			haveExtInf = true
		case strings.HasPrefix(line, "#"):
			// Other tags and comments do not affect playability.
		default:
			if pending != nil {
				pending.URI = line
				m.Variants = append(m.Variants, *pending)
				pending = nil
				continue
			}
			if !haveExtInf {
				return nil, fmt.Errorf("hls: segment %q without #EXTINF", line)
			}
			m.Segments = append(m.Segments, Segment{URI: line, Duration: nextDuration})
			m.TotalDuration += nextDuration
			nextDuration, haveExtInf = 0, false
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hls: read playlist: %w", err)
	}
	if !sawHeader {
		return nil, ErrNotManifest
	}

	if len(m.Variants) > 0 {
		m.Kind = KindMaster
	}
	m.IsVOD = typeVOD || hasEndList

	if len(m.Variants) == 0 && len(m.Segments) == 0 {
		return nil, ErrEmptyManifest
	}
	return m, nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// ParseAttributes splits an HLS attribute list (KEY=VALUE,KEY="a,b") into a map.
// Quoted values are returned without quotes.
func ParseAttributes(list string) map[string]string {
	attrs := make(map[string]string)
	for len(list) > 0 {
		eq := strings.IndexByte(list, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(list[:eq])
		rest := list[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				value, rest = rest[1:], ""
			} else {
				value, rest = rest[1:end+1], rest[end+2:]
			}
			rest = strings.TrimPrefix(rest, ",")
		} else if comma := strings.IndexByte(rest, ','); comma >= 0 {
			value, rest = rest[:comma], rest[comma+1:]
		} else {
			value, rest = rest, ""
		}

		if key != "" {
			attrs[key] = value
		}
		list = rest
	}
	return attrs
}
