// internal/gate/auth.go
//
// Chi middleware that keeps protected pages away from anonymous browsers.
//
// Context
// -------
// RequireAuth resolves the request's session through a Resolver and decides
// one of three outcomes:
//
//   • Authenticated – the wrapped handler runs unchanged with the session in
//     the request context (auth.FromContext).
//   • Anonymous     – exactly one 303 redirect to the login page for this
//     request.  The wrapped handler never runs.
//   • Unknown       – the session could not be re-verified.  A neutral 503
//     placeholder with Retry-After is written instead of the page, so nothing
//     protected renders and the browser is not bounced to login over an API
//     blip.
//
// The gate composes: RequireAuth(...)(Loading(...)) is the usual stack for a
// protected detail page.

package gate

import (
	"net/http"
	"net/url"

	"github.com/yanizio/forum/internal/auth"
	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/metrics"
)

// RetryAfter is the Retry-After value, in seconds, of the Unknown placeholder.
const RetryAfter = "5"

// Resolver classifies a request's session.  *auth.Manager satisfies it.
type Resolver interface {
	Resolve(r *http.Request) (auth.State, auth.Session)
}

// RequireAuth returns middleware redirecting anonymous requests to loginPath.
func RequireAuth(res Resolver, loginPath string) func(http.Handler) http.Handler {
	if res == nil || loginPath == "" {
		panic("gate.RequireAuth: resolver and login path are required")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, sess := res.Resolve(r)
			switch state {
			case auth.StateAuthenticated:
				metrics.AuthGate.WithLabelValues("allow").Inc()
				ctx := auth.WithSession(r.Context(), sess)
				next.ServeHTTP(w, r.WithContext(ctx))

			case auth.StateAnonymous:
				metrics.AuthGate.WithLabelValues("redirect").Inc()
				logger.FromContext(r.Context()).Debugw("auth gate redirect", "path", r.URL.Path)
				http.Redirect(w, r, loginURL(loginPath, r), http.StatusSeeOther)

			default:
				metrics.AuthGate.WithLabelValues("unknown").Inc()
				logger.FromContext(r.Context()).Warnw("auth gate undetermined", "path", r.URL.Path, "session", sess.ID)
				Placeholder(w)
			}
		})
	}
}

// Placeholder writes the neutral "not yet" page.
func Placeholder(w http.ResponseWriter) {
	w.Header().Set("Retry-After", RetryAfter)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("<!doctype html><meta charset=\"utf-8\"><title></title>\n"))
}

// loginURL appends the original GET path as ?next= so login can return.
func loginURL(loginPath string, r *http.Request) string {
	if r.Method != http.MethodGet || r.URL.Path == loginPath {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

// SafeNext returns next when it is a local absolute path, otherwise def.
// Login uses it so ?next= cannot redirect off-site.
func SafeNext(next, def string) string {
	if next == "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return def
	}
	return next
}
