// internal/middleware/logging.go
//
// Request id and access log.
//
/*
Context
--------
RequestID sits first in the chain.  It reuses a well-formed inbound
X-Request-ID (set by a proxy) or mints a UUID v7, echoes it on the response,
and stores it in the request context.

AccessLog runs next.  It derives a child of the global sugared logger
carrying request_id, method, and path, stores it with logger.WithContext so
handlers and the API client log with the same fields, and writes one INFO
line per request once the handler returns:

  • status, bytes, and latency
  • browser, OS, device class, and bot flag (internal/ua)

Notes
-----
  • /metrics and static assets are logged at DEBUG to keep the file quiet.
  • Oxford commas, two spaces after periods.
*/
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/ua"
)

// HeaderRequestID is read from proxies and echoed on every response.
const HeaderRequestID = "X-Request-ID"

type ridKey struct{}

// RequestID attaches a request id to the context and response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = newID()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), ridKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the id stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ridKey{}).(string)
	return id
}

func newID() string {
	if u, err := uuid.NewV7(); err == nil {
		return u.String()
	}
	return uuid.NewString()
}

// statusWriter records the status code and byte count.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// AccessLog logs one line per request with a request-scoped logger.
func AccessLog(base *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if l == nil {
				l = zap.S()
			}
			l = l.With("request_id", GetRequestID(r.Context()), "method", r.Method, "path", r.URL.Path)

			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(logger.WithContext(r.Context(), l)))
			if sw.status == 0 {
				sw.status = http.StatusOK
			}

			info := ua.Parse(r.UserAgent())
			fields := []any{
				"status", sw.status,
				"bytes", sw.bytes,
				"latency", time.Since(start),
				"browser", info.Browser,
				"os", info.OS,
				"device", info.Device,
				"bot", info.IsBot,
			}
			if quiet(r.URL.Path) {
				l.Debugw("request", fields...)
				return
			}
			l.Infow("request", fields...)
		})
	}
}

func quiet(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/static/")
}
