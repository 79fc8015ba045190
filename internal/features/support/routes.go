package support

import (
	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/features/auth"
)

// RegisterRoutes sets up the support routes on the given Echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	admin := e.Group("/api/admin/support", auth.RequireAdmin(authSvc))
	admin.GET("", h.Get)
	admin.PUT("", h.Update)
	admin.GET("/download", h.Download)
}
