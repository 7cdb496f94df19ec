// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resolver

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// mediaSrcPattern catches media addresses in markup the tokenizer cannot make sense of.
var mediaSrcPattern = regexp.MustCompile(`(?i)(?:data-)?src\s*=\s*["']([^"']+\.(?:mp4|m3u8|webm|mkv|mov)(?:\?[^"']*)?)["']`)

// ExtractMediaAddress returns the first src (or data-src) of a video or
// source element in document order, falling back to a pattern scan.
func ExtractMediaAddress(doc []byte) (string, bool) {
	if src, ok := extractFromTokens(doc); ok {
		return src, true
	}
	if m := mediaSrcPattern.FindSubmatch(doc); m != nil {
		return html.UnescapeString(string(m[1])), true
	}
	return "", false
}

func extractFromTokens(doc []byte) (string, bool) {
	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer failure; either way the markup is done.
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if (tag != "video" && tag != "source") || !hasAttr {
				continue
			}
			if src := mediaAttr(z); src != "" {
				return src, true
			}
		}
	}
}

// mediaAttr prefers src over data-src on one element.
func mediaAttr(z *html.Tokenizer) string {
	var src, dataSrc string
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "src":
			src = strings.TrimSpace(string(val))
		case "data-src":
			dataSrc = strings.TrimSpace(string(val))
		}
		if !more {
			break
		}
	}
	if src != "" {
		return src
	}
	return dataSrc
}
