package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/apperror"
)

// Context keys for storing session data in Echo context. Other feature
// packages read these through the exported getters below.
const (
	contextKeySession = "auth_session"
	contextKeyToken   = "auth_token"
)

// RequireAdmin returns middleware that validates the advisory bearer
// token and checks the admin allowlist. A missing or dead session is a
// 401 so the browser wipes its stored credentials; an authenticated
// non-admin is a 403 and keeps its session.
func RequireAdmin(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			session, err := service.ValidateToken(c.Request().Context(), token)
			if err != nil {
				return err
			}

			if !session.IsAdmin {
				return apperror.NewForbidden("admin access required")
			}

			c.Set(contextKeySession, session)
			c.Set(contextKeyToken, token)
			return next(c)
		}
	}
}

// --- Exported getters for other features ---

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is not authenticated (middleware not applied).
func GetSession(c echo.Context) *Session {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}

// GetLogin retrieves the authenticated admin's GitHub login.
func GetLogin(c echo.Context) string {
	if s := GetSession(c); s != nil {
		return s.Login
	}
	return ""
}

// GetToken retrieves the raw bearer token so it can be forwarded to the
// backend, which performs its own validation.
func GetToken(c echo.Context) string {
	token, ok := c.Get(contextKeyToken).(string)
	if !ok {
		return ""
	}
	return token
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
