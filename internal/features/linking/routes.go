package linking

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/features/auth"
	"github.com/vinsmoke-bot/console/internal/middleware"
)

// RegisterRoutes sets up the linking routes on the given Echo instance.
// Opening handshakes is public but rate limited hard, since each one
// costs the backend a session slot; inspecting and removing sessions is
// admin only.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	limited := middleware.RateLimit(10, time.Minute)

	e.GET("/ws/session", h.Relay)
	e.POST("/api/session/qr", h.CreateQR, limited)
	e.POST("/api/session/pairing", h.CreatePairing, limited)
	e.GET("/api/session/:id", h.GetSession)

	admin := e.Group("", auth.RequireAdmin(authSvc))
	admin.DELETE("/api/session/:id", h.DeleteSession)
	admin.GET("/api/session/:id/filelist", h.SessionFiles)
	admin.GET("/api/session/:id/file/:name", h.SessionFile)
}
