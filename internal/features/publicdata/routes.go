package publicdata

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/middleware"
)

// RegisterRoutes sets up the public data routes on the given Echo instance.
// All of them are unauthenticated; the submission endpoint is rate limited
// per IP since anyone can hit it.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/api/public-data", h.Get)
	e.POST("/api/public-data/refresh", h.Refresh, middleware.RateLimit(10, time.Minute))
	e.GET("/api/faqs", h.FAQs)
	e.GET("/api/plugins", h.Plugins)
	e.GET("/api/categories", h.Categories)
	e.POST("/api/plugins", h.Submit, middleware.RateLimit(5, time.Minute))
}
