package admindata

import (
	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/features/auth"
)

// RegisterRoutes sets up the admin data routes on the given Echo instance.
// Everything here requires an admin session.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService) {
	admin := e.Group("", auth.RequireAdmin(authSvc))

	admin.GET("/api/admin-data", h.Get)
	admin.POST("/api/admin-data/refresh", h.Refresh)
	admin.GET("/api/admin/stats", h.Stats)

	// Pending-edit workspace.
	admin.PATCH("/api/admin/workspace/:kind/:id", h.UpdateEntity)
	admin.DELETE("/api/admin/workspace/:kind/:id", h.DeleteEntity)
	admin.POST("/api/admin/workspace/:kind", h.CreateEntity)
	admin.POST("/api/admin/save", h.Save)
	admin.POST("/api/admin/discard", h.Discard)

	// Effective list views.
	admin.GET("/api/admin/faqs", h.ListFAQs)
	admin.GET("/api/admin/sessions", h.ListSessions)

	// Immediate operations outside the workspace.
	admin.POST("/api/admin/faqs", h.CreateFAQ)
	admin.PUT("/api/admin/faqs/:id", h.UpdateFAQ)
	admin.DELETE("/api/admin/faqs/:id", h.DeleteFAQ)
	admin.PATCH("/api/admin/plugins/:id/status", h.SetPluginStatus)
	admin.DELETE("/api/admin/plugins/:id", h.DeletePlugin)
	admin.DELETE("/api/admin/sessions/:id", h.DeleteSession)

	// Export blobs.
	admin.GET("/api/admin/download/sessions", h.DownloadSessions)
	admin.GET("/api/admin/download/plugins", h.DownloadPlugins)
}
