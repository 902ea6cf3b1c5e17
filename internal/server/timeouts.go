// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadTimeout   – abort slow-loris headers
//   • WriteTimeout  – cap total response time
//   • IdleTimeout   – close keep-alives on idle clients
//
// The values come from the `http` config section; a zero falls back to the
// defaults below so cmd/web doesn’t repeat boilerplate.

package server

import (
	"net/http"
	"time"

	"github.com/yanizio/forum/internal/config"
)

const (
	defaultRead  = 10 * time.Second
	defaultWrite = 15 * time.Second
	defaultIdle  = 60 * time.Second
)

// New constructs an *http.Server for cfg.ListenAddr.
func New(cfg config.HTTP, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       orDefault(cfg.ReadTimeout, defaultRead),
		ReadHeaderTimeout: orDefault(cfg.ReadTimeout, defaultRead),
		WriteTimeout:      orDefault(cfg.WriteTimeout, defaultWrite),
		IdleTimeout:       orDefault(cfg.IdleTimeout, defaultIdle),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
