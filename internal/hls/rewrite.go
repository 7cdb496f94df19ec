package hls

import (
	"bufio"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// uriAttr matches URI="..." inside tags such as #EXT-X-KEY, #EXT-X-MAP and #EXT-X-MEDIA.
var uriAttr = regexp.MustCompile(`URI="([^"]*)"`)

// Rewrite resolves every URI in playlist against base and passes the absolute
// form through wrap. Tags and comments are kept byte for byte otherwise.
func Rewrite(playlist string, base *url.URL, wrap func(abs string) string) (string, error) {
	if base == nil {
		return "", fmt.Errorf("hls: rewrite needs a base URL")
	}

	var (
		out     strings.Builder
		errOnce error
	)
	resolve := func(ref string) string {
		u, err := url.Parse(strings.TrimSpace(ref))
		if err != nil {
			if errOnce == nil {
				errOnce = fmt.Errorf("hls: invalid URI %q: %w", ref, err)
			}
			return ref
		}
		return wrap(base.ResolveReference(u).String())
	}

	scanner := bufio.NewScanner(strings.NewReader(playlist))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			out.WriteString(line)
		case strings.HasPrefix(trimmed, "#"):
			out.WriteString(uriAttr.ReplaceAllStringFunc(line, func(m string) string {
				inner := uriAttr.FindStringSubmatch(m)[1]
				if strings.HasPrefix(inner, "data:") {
					return m
				}
				return `URI="` + resolve(inner) + `"`
			}))
		default:
			out.WriteString(resolve(trimmed))
		}
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("hls: read playlist: %w", err)
	}
	if errOnce != nil {
		return "", errOnce
	}
	return out.String(), nil
}
