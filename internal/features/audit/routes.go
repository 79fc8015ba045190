package audit

import (
	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/features/auth"
)

// RegisterRoutes sets up the audit routes on the given Echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	e.GET("/api/admin/audit", h.Feed, auth.RequireAdmin(authSvc))
}
