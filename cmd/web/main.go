// cmd/web/main.go
//
// Forum front-end – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Bootstrap console logger so config errors are visible.
//
//  2. Load configuration (.env → conf/global.yaml → FORUM_ env), resolving
//     `vault:` references through a lazily-connected Vault client.
//
//  3. Start daily rotating logger (tees to console when running in a TTY).
//
//  4. Build the REST API client, the uniqueness checker, the form-session
//     store, the auth session store, and the view engine.
//
//  5. Build the chi router:
//
//     • request id, access log, panic recovery
//     • security headers, HTTPS enforcement, and flash notices
//     • /static, /metrics, and the live-validation endpoints
//     • components: auth, board, account
//
//  6. Run the server and both janitors until SIGINT or SIGTERM, then drain
//     in-flight requests within http.shutdown_timeout.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/forum/components/account"
	authc "github.com/yanizio/forum/components/auth"
	"github.com/yanizio/forum/components/board"
	"github.com/yanizio/forum/internal/api"
	"github.com/yanizio/forum/internal/auth"
	"github.com/yanizio/forum/internal/component"
	"github.com/yanizio/forum/internal/config"
	"github.com/yanizio/forum/internal/form"
	"github.com/yanizio/forum/internal/logger"
	"github.com/yanizio/forum/internal/message"
	"github.com/yanizio/forum/internal/middleware"
	"github.com/yanizio/forum/internal/server"
	"github.com/yanizio/forum/internal/vault"
	"github.com/yanizio/forum/internal/view"
)

const (
	vaultCacheTTL = 10 * time.Minute
	sweepInterval = time.Minute
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("forum: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Bootstrap logger + configuration ────────────────────────────
	//
	boot, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(boot)

	cfg, err := config.Load(ctx, vault.New(ctx, vaultCacheTTL))
	if err != nil {
		return err
	}

	logOut, err := logger.New(cfg.Log.Dir, cfg.Log.Level, runningInTTY())
	if err != nil {
		return err
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 2.  Collaborators ───────────────────────────────────────────────
	//
	client, err := api.New(cfg.API)
	if err != nil {
		return err
	}
	form.ConfigureCSRF(cfg.Forms.CSRFKey)

	deps := component.Deps{
		API:   client,
		Auth:  auth.NewManager(auth.NewStore(cfg.Session, client), auth.NewCookies(cfg.Session)),
		Forms: form.NewStore(cfg.Forms, form.NewAPIChecker(client, cfg.API.CheckRPS, cfg.API.CheckBurst)),
		Views: view.New(client.ImageURL),
	}

	//
	// ── 3.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.AccessLog(logOut),
		chimw.Recoverer,
		middleware.Security(cfg.HTTP.ForceHTTPS, client.BaseURL()),
		middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS),
		message.Flash,
	)
	r.Handle("/static/*", view.Static())
	r.Handle("/metrics", promhttp.Handler())
	form.Routes(r, deps.Forms)

	reg := component.NewRegistry()
	reg.Register(authc.New(deps))
	reg.Register(board.New(deps))
	reg.Register(account.New(deps))
	if err := reg.Mount(r, deps); err != nil {
		return err
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		deps.Views.Error(w, req, http.StatusNotFound, deps.Page(req, "", nil), component.MsgNotFound)
	})

	//
	// ── 4.  Serve until signalled ───────────────────────────────────────
	//
	srv := server.New(cfg.HTTP, r)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr, "api", client.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		deps.Forms.Run(gctx, sweepInterval)
		return nil
	})
	g.Go(func() error {
		deps.Auth.Store.Run(gctx, sweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logOut.Infow("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.HTTP))
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func shutdownTimeout(h config.HTTP) time.Duration {
	if h.ShutdownTimeout > 0 {
		return h.ShutdownTimeout
	}
	return 10 * time.Second
}
