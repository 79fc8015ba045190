package likes

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/middleware"
)

// RegisterRoutes sets up the like routes on the given Echo instance. The
// toggle endpoint is public (anyone browsing the gallery can like) but
// rate limited per IP.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.POST("/api/plugins/:id/like", h.Toggle, middleware.RateLimit(60, time.Minute))
	e.GET("/api/likes/pending", h.Pending)
}
