package support

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/features/auth"
	"github.com/vinsmoke-bot/console/internal/upstream"
)

// Handler handles HTTP requests for the support page content.
type Handler struct {
	service SupportService
}

// NewHandler creates a new support handler.
func NewHandler(service SupportService) *Handler {
	return &Handler{service: service}
}

// Get returns the support content (GET /api/admin/support).
func (h *Handler) Get(c echo.Context) error {
	data, err := h.service.Get(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data)
}

// Update replaces the support content (PUT /api/admin/support).
func (h *Handler) Update(c echo.Context) error {
	var data upstream.SupportData
	if err := c.Bind(&data); err != nil {
		return apperror.NewBadRequest("invalid support body")
	}

	err := h.service.Update(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c), data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// Download streams the support export (GET /api/admin/support/download).
func (h *Handler) Download(c echo.Context) error {
	blob, contentType, err := h.service.Download(c.Request().Context(), auth.GetToken(c))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(http.StatusOK, contentType, blob)
}
