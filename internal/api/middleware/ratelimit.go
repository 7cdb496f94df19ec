// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// ScopeKey keys limits by browsing session: the scope header, then the scope
// cookie, then the client IP for callers that have neither yet.
func ScopeKey(header, cookie string) httprate.KeyFunc {
	return func(r *http.Request) (string, error) {
		if v := r.Header.Get(header); v != "" {
			return "scope:" + v, nil
		}
		if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
			return "scope:" + c.Value, nil
		}
		ip, err := httprate.KeyByIP(r)
		return "ip:" + ip, err
	}
}

// PlaybackRateLimit allows perMinute API calls per key. Zero or less returns
// a pass-through.
func PlaybackRateLimit(perMinute int, key httprate.KeyFunc) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if key == nil {
		key = httprate.KeyByIP
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(time.Minute.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  "rate_limited",
		"detail": "too many playback requests, slow down",
	})
}
