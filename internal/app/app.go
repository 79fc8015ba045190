// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (upstream client, MariaDB
// pool, Redis client, Echo instance) and wires together all features.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/cache"
	"github.com/vinsmoke-bot/console/internal/config"
	"github.com/vinsmoke-bot/console/internal/middleware"
	"github.com/vinsmoke-bot/console/internal/upstream"

	"github.com/vinsmoke-bot/console/internal/features/admindata"
	"github.com/vinsmoke-bot/console/internal/features/audit"
	"github.com/vinsmoke-bot/console/internal/features/auth"
	"github.com/vinsmoke-bot/console/internal/features/likes"
	"github.com/vinsmoke-bot/console/internal/features/linking"
	"github.com/vinsmoke-bot/console/internal/features/publicdata"
	"github.com/vinsmoke-bot/console/internal/features/support"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB connection pool (audit trail).
	DB *sql.DB

	// Redis is the Redis client shared for sessions, caching, rate limiting.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	// Likes is the like-batching queue. Exposed so main can flush it on
	// shutdown after the HTTP server has drained.
	Likes *likes.Batcher

	backend   *upstream.Client
	snapshots *cache.Snapshots
	authSvc   auth.AuthService
	adminSvc  admindata.AdminDataService
	auditSvc  audit.AuditService
	publicSvc publicdata.PublicDataService
	supSvc    support.SupportService
	linkH     *linking.Handler
	authH     *auth.Handler
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Configure trusted reverse proxy IPs so c.RealIP() returns the actual
	// client IP instead of the proxy's IP. Critical for rate limiting and
	// abuse detection when the console sits behind Docker networking.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	app.wire()

	return app
}

// wire constructs every feature service and handler. All upstream-facing
// features share the one HTTP client, and all admin actions flow through
// the one audit recorder.
func (a *App) wire() {
	cfg := a.Config

	a.backend = upstream.New(cfg.Upstream)
	a.snapshots = cache.NewSnapshots(cache.NewRedisStore(a.Redis))

	a.auditSvc = audit.NewAuditService(audit.NewAuditRepository(a.DB))

	a.publicSvc = publicdata.NewPublicDataService(a.backend, a.snapshots)
	a.adminSvc = admindata.NewAdminDataService(a.backend, a.snapshots, a.auditSvc)
	a.supSvc = support.NewSupportService(a.backend, a.auditSvc)

	a.Likes = likes.NewBatcher(a.backend, cfg.Likes.BatchDelay)

	a.linkH = linking.NewHandler(
		a.backend,
		linking.NewPushDialer(cfg.Upstream.WebsocketURL()),
		cfg.AllowedOrigins,
	)

	provider := auth.NewGitHubProvider(cfg.Auth, cfg.BaseURL)
	a.authSvc = auth.NewAuthService(provider, a.Redis, cfg.Auth)
	a.authH = auth.NewHandler(a.authSvc, cfg.BaseURL,
		// Logging out drops the admin's pending edits, empties the data
		// caches, and records the event.
		func(ctx context.Context, login string) {
			a.adminSvc.DropWorkspace(login)
			a.snapshots.ClearAll(ctx)
		},
		func(ctx context.Context, login string) {
			a.auditSvc.Record(ctx, login, audit.ActionLogout, "", "", "")
		},
	)
	a.authH.OnLogin = func(ctx context.Context, login string) {
		a.auditSvc.Record(ctx, login, audit.ActionLogin, "", "", "")
	}
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Security headers -- X-Frame-Options, X-Content-Type-Options, etc.
	a.Echo.Use(middleware.SecurityHeaders())

	// CORS -- the React dev server runs on a different origin than the API.
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   a.Config.AllowedOrigins,
		AllowCredentials: true,
	}))
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to the JSON envelope the browser client expects:
//
//	{"success": false, "error": "..."}
//
// Upstream maintenance surfaces as 503 with its own message so the client
// can show the maintenance banner instead of a generic failure.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := apperror.SafeCode(err)
	message := apperror.SafeMessage(err)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	} else {
		// Echo's built-in HTTP errors (e.g., 404 from the router).
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		} else {
			slog.Error("unhandled error",
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
			)
		}
	}

	c.JSON(code, map[string]any{
		"success": false,
		"error":   message,
	})
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Vinsmoke console",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}
