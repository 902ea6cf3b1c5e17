// internal/gate/loading.go
//
// Data-loading gate.  Loading runs fetch before the view and only renders
// once data is in hand; a failed fetch renders the error page instead.  It is
// the server-side half of "show a spinner until the data arrives": here the
// request simply waits.

package gate

import (
	"net/http"

	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/logger"
)

// FetchFunc loads the data a view needs.
type FetchFunc[T any] func(r *http.Request) (T, error)

// RenderFunc renders a view with loaded data.
type RenderFunc[T any] func(w http.ResponseWriter, r *http.Request, data T)

// ErrorFunc renders a failed fetch.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// Loading wraps fetch and render into one handler.  onErr may be nil, in
// which case DefaultError is used.
func Loading[T any](fetch FetchFunc[T], render RenderFunc[T], onErr ErrorFunc) http.Handler {
	if onErr == nil {
		onErr = DefaultError
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := fetch(r)
		if err != nil {
			onErr(w, r, err)
			return
		}
		render(w, r, data)
	})
}

// StatusFor maps a fetch error to the status the browser should see.
func StatusFor(err error) int {
	switch {
	case api.IsNotFound(err):
		return http.StatusNotFound
	case api.IsUnauthorized(err):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

// DefaultError writes a plain-text error without leaking err.
func DefaultError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= 500 {
		logger.FromContext(r.Context()).Errorw("page data fetch failed", "path", r.URL.Path, "err", err)
	}
	http.Error(w, http.StatusText(status), status)
}
