package likes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/apperror"
)

// Handler handles HTTP requests for like toggles. Handlers are thin: bind
// request, call the batcher, render response.
type Handler struct {
	batcher *Batcher
}

// NewHandler creates a new likes handler.
func NewHandler(batcher *Batcher) *Handler {
	return &Handler{batcher: batcher}
}

// Toggle buffers a like toggle and answers optimistically
// (POST /api/plugins/:id/like). The backend sees the write when the batch
// flushes.
func (h *Handler) Toggle(c echo.Context) error {
	var body struct {
		UserID string `json:"userId"`
		Liked  bool   `json:"liked"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.NewBadRequest("invalid like body")
	}
	if body.UserID == "" {
		return apperror.NewValidation("userId is required")
	}

	desired := h.batcher.Toggle(c.Param("id"), body.UserID, body.Liked)

	return c.JSON(http.StatusAccepted, map[string]any{
		"success": true,
		"liked":   desired,
		"pending": true,
	})
}

// Pending reports the batch state (GET /api/likes/pending). The gallery
// uses it to show that clicks are buffered, not lost.
func (h *Handler) Pending(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"count":       h.batcher.PendingCount(),
		"remainingMs": h.batcher.RemainingTime().Milliseconds(),
	})
}
