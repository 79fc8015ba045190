package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/apperror"
)

// stateCookie carries the OAuth CSRF state between the redirect and the
// callback.
const stateCookie = "vinsmoke_oauth_state"

// LogoutHook runs after a session is destroyed, so other features can
// drop per-admin state (pending edits, cached snapshots).
type LogoutHook func(ctx context.Context, login string)

// Handler handles HTTP requests for authentication. Handlers are thin:
// bind request, call service, render response.
type Handler struct {
	service  AuthService
	baseURL  string
	onLogout []LogoutHook

	// OnLogin, when set, runs after a successful callback.
	OnLogin func(ctx context.Context, login string)
}

// NewHandler creates a new auth handler. baseURL is where the browser is
// sent back to after the OAuth dance.
func NewHandler(service AuthService, baseURL string, onLogout ...LogoutHook) *Handler {
	return &Handler{service: service, baseURL: baseURL, onLogout: onLogout}
}

// Login redirects the browser to GitHub's consent page
// (GET /auth/github).
func (h *Handler) Login(c echo.Context) error {
	state, err := generateState()
	if err != nil {
		return apperror.NewInternal(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int((5 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return c.Redirect(http.StatusFound, h.service.LoginURL(state))
}

// Callback finishes the OAuth dance (GET /auth/github/callback). On
// success the browser is redirected back to the console with the token in
// the URL fragment, which never reaches server logs.
func (h *Handler) Callback(c echo.Context) error {
	cookie, err := c.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != c.QueryParam("state") {
		return apperror.NewUnauthorized("oauth state mismatch")
	}
	// The state is single use.
	c.SetCookie(&http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})

	code := c.QueryParam("code")
	if code == "" {
		return apperror.NewBadRequest("missing authorization code")
	}

	token, session, err := h.service.HandleCallback(c.Request().Context(), code, c.RealIP())
	if err != nil {
		return err
	}
	if h.OnLogin != nil {
		h.OnLogin(c.Request().Context(), session.Login)
	}

	return c.Redirect(http.StatusFound, h.baseURL+"/auth/complete#token="+url.QueryEscape(token))
}

// Me returns the caller's session (GET /auth/me). Mounted behind
// RequireAdmin, so reaching it implies a live admin session.
func (h *Handler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, GetSession(c))
}

// Logout destroys the caller's session (POST /auth/logout) and fans out
// to the registered hooks so per-admin state is dropped everywhere.
func (h *Handler) Logout(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return apperror.NewUnauthorized("authentication required")
	}

	ctx := c.Request().Context()
	var login string
	if claims, err := decodeToken(token); err == nil {
		login = claims.Login
	}

	if err := h.service.Logout(ctx, token); err != nil {
		return err
	}
	for _, hook := range h.onLogout {
		hook(ctx, login)
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
