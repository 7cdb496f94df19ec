// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// defaultDevOrigins are allowed when no origins are configured.
var defaultDevOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://localhost:8080",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:8080",
}

// scopeHeader mirrors the session package's scope header, which browsers
// must be allowed to send cross-origin.
const scopeHeader = "X-Session-ID"

// CORS returns a middleware that sets Cross-Origin Resource Sharing headers
// for the playback view. "*" in allowedOrigins allows every origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultDevOrigins
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Range", HeaderRequestID, scopeHeader},
		ExposedHeaders: []string{HeaderRequestID, "Content-Range", "Accept-Ranges"},
		MaxAge:         600,
	})
	return c.Handler
}
