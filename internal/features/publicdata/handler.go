package publicdata

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/apperror"
)

// Handler handles HTTP requests for public data. Handlers are thin: bind
// request, call service, render response. No business logic lives here.
type Handler struct {
	service PublicDataService
}

// NewHandler creates a new public data handler.
func NewHandler(service PublicDataService) *Handler {
	return &Handler{service: service}
}

// Get returns the public data snapshot (GET /api/public-data).
func (h *Handler) Get(c echo.Context) error {
	data, err := h.service.Get(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data)
}

// Refresh bypasses the cache and refetches from the backend
// (POST /api/public-data/refresh).
func (h *Handler) Refresh(c echo.Context) error {
	data, err := h.service.Refresh(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data)
}

// FAQs returns the FAQ list (GET /api/faqs).
func (h *Handler) FAQs(c echo.Context) error {
	faqs, err := h.service.FAQs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, faqs)
}

// Plugins returns the plugin gallery (GET /api/plugins).
func (h *Handler) Plugins(c echo.Context) error {
	plugins, err := h.service.Plugins(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plugins)
}

// Categories returns the gallery filter list (GET /api/categories).
func (h *Handler) Categories(c echo.Context) error {
	cats, err := h.service.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cats)
}

// Submit accepts a community plugin submission (POST /api/plugins).
func (h *Handler) Submit(c echo.Context) error {
	var p upstreamPluginRequest
	if err := c.Bind(&p); err != nil {
		return apperror.NewBadRequest("invalid submission body")
	}

	plugin := p.toPlugin()
	if err := h.service.Submit(c.Request().Context(), plugin); err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"success": true,
		"message": "submission received and pending review",
	})
}
