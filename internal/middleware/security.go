// internal/middleware/security.go
//
// Security-header middleware.
//
// Injects industry-standard headers on every response:
//
//   • Strict-Transport-Security  –  forces HTTPS (2 years), only when HTTPS is on
//   • Content-Security-Policy   –  self-only policy; images may also come from
//                                  the REST API origin (profile and post images)
//   • X-Frame-Options           –  click-jacking defence
//   • X-Content-Type-Options    –  MIME-sniffing defence
//   • Referrer-Policy           –  drops path/query from Referer
//   • Permissions-Policy        –  disables powerful features by default
//
// Notes
// -----
// • Headers are set *before* next.ServeHTTP; anything written after the body
//   starts is ignored by net/http.  Handlers may still override a value.
// • Oxford commas, two spaces after periods.

package middleware

import (
	"net/http"
	"strings"
)

// Security returns middleware that sets security headers.  imgOrigins are
// extra img-src sources, typically the API base URL.
func Security(hsts bool, imgOrigins ...string) func(http.Handler) http.Handler {
	const (
		hstsVal = "max-age=63072000; includeSubDomains"
		xfo     = "DENY"
		nosn    = "nosniff"
		refer   = "strict-origin-when-cross-origin"
		perm    = "geolocation=(), microphone=(), camera=()"
	)

	img := append([]string{"'self'", "data:", "blob:"}, imgOrigins...)
	csp := "default-src 'self'; img-src " + strings.Join(img, " ") +
		"; object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if hsts {
				h.Set("Strict-Transport-Security", hstsVal)
			}
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Frame-Options", xfo)
			h.Set("X-Content-Type-Options", nosn)
			h.Set("Referrer-Policy", refer)
			h.Set("Permissions-Policy", perm)
			next.ServeHTTP(w, r)
		})
	}
}
