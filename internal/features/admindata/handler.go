package admindata

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/features/auth"
	"github.com/vinsmoke-bot/console/internal/upstream"
)

// Handler handles HTTP requests for the admin data overlay. Handlers are
// thin: bind request, call service, render response. No business logic
// lives here.
type Handler struct {
	service AdminDataService
}

// NewHandler creates a new admin data handler.
func NewHandler(service AdminDataService) *Handler {
	return &Handler{service: service}
}

// Get returns the snapshot with the caller's pending edits applied
// (GET /api/admin-data).
func (h *Handler) Get(c echo.Context) error {
	data, err := h.service.Effective(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data)
}

// Stats returns the dashboard counters (GET /api/admin/stats).
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context(), auth.GetToken(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// Refresh refetches the snapshot and clears the caller's pending edits
// (POST /api/admin-data/refresh).
func (h *Handler) Refresh(c echo.Context) error {
	if err := h.service.Refresh(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// UpdateEntity buffers a field patch (PATCH /api/admin/workspace/:kind/:id).
func (h *Handler) UpdateEntity(c echo.Context) error {
	var fields map[string]any
	if err := c.Bind(&fields); err != nil {
		return apperror.NewBadRequest("invalid patch body")
	}
	if err := h.service.Update(auth.GetLogin(c), c.Param("kind"), c.Param("id"), fields); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// DeleteEntity tombstones an entity (DELETE /api/admin/workspace/:kind/:id).
func (h *Handler) DeleteEntity(c echo.Context) error {
	if err := h.service.Delete(auth.GetLogin(c), c.Param("kind"), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// CreateEntity adds a new entity under a temporary id
// (POST /api/admin/workspace/:kind).
func (h *Handler) CreateEntity(c echo.Context) error {
	var fields map[string]any
	if err := c.Bind(&fields); err != nil {
		return apperror.NewBadRequest("invalid entity body")
	}
	id, err := h.service.Create(auth.GetLogin(c), c.Param("kind"), fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"success": true, "id": id})
}

// Save flushes the caller's pending edits (POST /api/admin/save).
func (h *Handler) Save(c echo.Context) error {
	if err := h.service.SaveAll(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// Discard drops the caller's pending edits (POST /api/admin/discard).
func (h *Handler) Discard(c echo.Context) error {
	h.service.Discard(c.Request().Context(), auth.GetLogin(c))
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// ListFAQs returns the FAQ list with pending edits applied
// (GET /api/admin/faqs).
func (h *Handler) ListFAQs(c echo.Context) error {
	data, err := h.service.Effective(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data.FAQs)
}

// ListSessions returns the session list with pending edits applied
// (GET /api/admin/sessions).
func (h *Handler) ListSessions(c echo.Context) error {
	data, err := h.service.Effective(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data.Sessions)
}

// --- Immediate operations ---

// CreateFAQ adds a FAQ right away (POST /api/admin/faqs).
func (h *Handler) CreateFAQ(c echo.Context) error {
	var f upstream.FAQ
	if err := c.Bind(&f); err != nil {
		return apperror.NewBadRequest("invalid faq body")
	}
	created, err := h.service.CreateFAQNow(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c), &f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// UpdateFAQ replaces a FAQ (PUT /api/admin/faqs/:id).
func (h *Handler) UpdateFAQ(c echo.Context) error {
	var f upstream.FAQ
	if err := c.Bind(&f); err != nil {
		return apperror.NewBadRequest("invalid faq body")
	}
	f.ID = c.Param("id")
	if err := h.service.UpdateFAQNow(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c), &f); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// DeleteFAQ removes a FAQ (DELETE /api/admin/faqs/:id).
func (h *Handler) DeleteFAQ(c echo.Context) error {
	if err := h.service.DeleteFAQNow(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// SetPluginStatus approves or rejects a submission
// (PATCH /api/admin/plugins/:id/status).
func (h *Handler) SetPluginStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.NewBadRequest("invalid status body")
	}
	err := h.service.SetPluginStatus(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c), c.Param("id"), body.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// DeletePlugin removes a plugin (DELETE /api/admin/plugins/:id).
func (h *Handler) DeletePlugin(c echo.Context) error {
	if err := h.service.DeletePluginNow(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// DeleteSession unlinks a bot session (DELETE /api/admin/sessions/:id).
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.service.DeleteSessionNow(c.Request().Context(), auth.GetToken(c), auth.GetLogin(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// DownloadSessions streams the sessions export (GET /api/admin/download/sessions).
func (h *Handler) DownloadSessions(c echo.Context) error {
	blob, contentType, err := h.service.DownloadSessions(c.Request().Context(), auth.GetToken(c))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, contentType, blob)
}

// DownloadPlugins streams the plugins export (GET /api/admin/download/plugins).
func (h *Handler) DownloadPlugins(c echo.Context) error {
	blob, contentType, err := h.service.DownloadPlugins(c.Request().Context(), auth.GetToken(c))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, contentType, blob)
}
