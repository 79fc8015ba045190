package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/features/admindata"
	"github.com/vinsmoke-bot/console/internal/features/audit"
	"github.com/vinsmoke-bot/console/internal/features/auth"
	"github.com/vinsmoke-bot/console/internal/features/likes"
	"github.com/vinsmoke-bot/console/internal/features/linking"
	"github.com/vinsmoke-bot/console/internal/features/publicdata"
	"github.com/vinsmoke-bot/console/internal/features/support"
)

// RegisterRoutes sets up all application routes. It registers shared routes
// directly and delegates to each feature's route registration function.
//
// This is the single place where all routes are aggregated. When a new
// feature is added, its routes are registered here.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for Docker health monitoring. Reports on the
	// console's own stores, not the upstream backend: the console stays up
	// through upstream maintenance windows.
	e.GET("/healthz", func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := a.DB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db unreachable"})
		}
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "redis unreachable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// --- Feature Routes ---

	auth.RegisterRoutes(e, a.authH, a.authSvc)

	publicdata.RegisterRoutes(e, publicdata.NewHandler(a.publicSvc))
	likes.RegisterRoutes(e, likes.NewHandler(a.Likes))
	linking.RegisterRoutes(e, a.linkH, a.authSvc)

	admindata.RegisterRoutes(e, admindata.NewHandler(a.adminSvc), a.authSvc)
	support.RegisterRoutes(e, support.NewHandler(a.supSvc), a.authSvc)
	audit.RegisterRoutes(e, audit.NewHandler(a.auditSvc), a.authSvc)
}
