package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/middleware"
)

// RegisterRoutes sets up the authentication routes on the given Echo
// instance. The OAuth entry points are rate limited per IP; the lockout
// counter in the service handles repeated failed exchanges.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService) {
	g := e.Group("/auth", middleware.RateLimit(30, time.Minute))

	g.GET("/github", h.Login)
	g.GET("/github/callback", h.Callback)
	g.GET("/me", h.Me, RequireAdmin(service))
	g.POST("/logout", h.Logout)
}
