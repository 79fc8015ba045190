package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/config"
)

// maintenanceSentinel is the error code the backend returns while it is
// down for maintenance. It can arrive with any status, including 200.
const maintenanceSentinel = "MAINTENANCE_MODE"

// Client talks to the bot backend's REST API. All methods return errors
// from the apperror taxonomy so handlers can map them straight to HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client from the upstream section of the config.
func New(cfg config.UpstreamConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// --- public surface ---

// PublicData fetches the aggregate payload for unauthenticated pages.
func (c *Client) PublicData(ctx context.Context) (*PublicData, error) {
	var out PublicData
	if err := c.do(ctx, http.MethodGet, "/api/public-data", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LikePlugin toggles one user's like on a plugin.
func (c *Client) LikePlugin(ctx context.Context, pluginID, userID string, liked bool) error {
	body := map[string]any{"userId": userID, "liked": liked}
	path := "/api/plugins/" + url.PathEscape(pluginID) + "/like"
	return c.do(ctx, http.MethodPost, path, "", body, nil)
}

// SubmitPlugin sends a community plugin submission for review.
func (c *Client) SubmitPlugin(ctx context.Context, p *Plugin) error {
	return c.do(ctx, http.MethodPost, "/api/plugins/submit", "", p, nil)
}

// Support fetches the support page content.
func (c *Client) Support(ctx context.Context) (SupportData, error) {
	var out SupportData
	if err := c.do(ctx, http.MethodGet, "/api/support", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- session linking ---

// CreateQRSession starts a QR-based linking flow.
func (c *Client) CreateQRSession(ctx context.Context) (*LinkSession, error) {
	var out LinkSession
	if err := c.do(ctx, http.MethodPost, "/api/sessions/qr", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePairingSession starts a pairing-code flow for the given phone
// number. The number must already be validated by the caller.
func (c *Client) CreatePairingSession(ctx context.Context, phone string) (*LinkSession, error) {
	var out LinkSession
	body := map[string]string{"phoneNumber": phone}
	if err := c.do(ctx, http.MethodPost, "/api/sessions/pairing", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session fetches one session by id.
func (c *Client) Session(ctx context.Context, id string) (*Session, error) {
	var out Session
	path := "/api/sessions/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession removes a session and its stored credentials.
func (c *Client) DeleteSession(ctx context.Context, token, id string) error {
	path := "/api/sessions/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, token, nil, nil)
}

// SessionFiles lists the files stored for a session.
func (c *Client) SessionFiles(ctx context.Context, token, id string) ([]SessionFile, error) {
	var out struct {
		Files []SessionFile `json:"files"`
	}
	path := "/api/sessions/" + url.PathEscape(id) + "/files"
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// SessionFile downloads one file of a session verbatim. The returned
// content type is the backend's, so the handler can pass it through.
func (c *Client) SessionFile(ctx context.Context, token, id, name string) ([]byte, string, error) {
	path := "/api/sessions/" + url.PathEscape(id) + "/files/" + url.PathEscape(name)
	return c.blob(ctx, path, token)
}

// --- admin surface ---

// AdminData fetches the full admin snapshot.
func (c *Client) AdminData(ctx context.Context, token string) (*AdminData, error) {
	var out AdminData
	if err := c.do(ctx, http.MethodGet, "/api/admin/data", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminStats fetches only the dashboard counters.
func (c *Client) AdminStats(ctx context.Context, token string) (*Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodGet, "/api/admin/stats", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BulkSave applies an ordered set of admin operations in one call. The
// backend applies them atomically; a failed call leaves nothing applied.
func (c *Client) BulkSave(ctx context.Context, token string, ops []Operation) error {
	body := map[string]any{"operations": ops}
	return c.do(ctx, http.MethodPost, "/api/admin/bulk-save", token, body, nil)
}

// CreateFAQ adds a FAQ immediately, outside the bulk-save path.
func (c *Client) CreateFAQ(ctx context.Context, token string, f *FAQ) (*FAQ, error) {
	var out FAQ
	if err := c.do(ctx, http.MethodPost, "/api/admin/faqs", token, f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateFAQ replaces a FAQ by id.
func (c *Client) UpdateFAQ(ctx context.Context, token string, f *FAQ) error {
	path := "/api/admin/faqs/" + url.PathEscape(f.ID)
	return c.do(ctx, http.MethodPut, path, token, f, nil)
}

// DeleteFAQ removes a FAQ by id.
func (c *Client) DeleteFAQ(ctx context.Context, token, id string) error {
	path := "/api/admin/faqs/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, token, nil, nil)
}

// SetPluginStatus approves or rejects a submitted plugin.
func (c *Client) SetPluginStatus(ctx context.Context, token, id, status string) error {
	path := "/api/admin/plugins/" + url.PathEscape(id) + "/status"
	return c.do(ctx, http.MethodPatch, path, token, map[string]string{"status": status}, nil)
}

// DeletePlugin removes a plugin from the gallery.
func (c *Client) DeletePlugin(ctx context.Context, token, id string) error {
	path := "/api/admin/plugins/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, token, nil, nil)
}

// UpdateSupport replaces the support page content.
func (c *Client) UpdateSupport(ctx context.Context, token string, data SupportData) error {
	return c.do(ctx, http.MethodPut, "/api/admin/support", token, data, nil)
}

// DownloadSessions fetches the sessions export archive.
func (c *Client) DownloadSessions(ctx context.Context, token string) ([]byte, string, error) {
	return c.blob(ctx, "/api/admin/download/sessions", token)
}

// DownloadPlugins fetches the plugins export archive.
func (c *Client) DownloadPlugins(ctx context.Context, token string) ([]byte, string, error) {
	return c.blob(ctx, "/api/admin/download/plugins", token)
}

// DownloadSupport fetches the support document export.
func (c *Client) DownloadSupport(ctx context.Context, token string) ([]byte, string, error) {
	return c.blob(ctx, "/api/admin/download/support", token)
}

// --- transport ---

// do performs one JSON request. When out is non-nil, the response payload
// is decoded into it after the envelope check.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("build request: %w", err))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.NewUpstream(http.StatusBadGateway, "backend unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperror.NewUpstream(http.StatusBadGateway, "backend response truncated")
	}

	if err := normalize(resp.StatusCode, raw); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperror.NewInternal(fmt.Errorf("decode %s %s: %w", method, path, err))
		}
	}
	return nil
}

// blob performs a GET whose body is passed through untouched.
func (c *Client) blob(ctx context.Context, path, token string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", apperror.NewUpstream(http.StatusBadGateway, "backend unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", apperror.NewUpstream(http.StatusBadGateway, "backend response truncated")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if err := normalize(resp.StatusCode, raw); err != nil {
			return nil, "", err
		}
	}
	return raw, resp.Header.Get("Content-Type"), nil
}

// normalize maps a backend response onto the apperror taxonomy. A 2xx
// status with a {success:false} envelope is still an error; maintenance
// mode is recognized by status and by the error code in the body.
func normalize(status int, raw []byte) error {
	var env envelope
	// Non-JSON bodies (blobs, proxies misbehaving) decode to the zero
	// envelope, which is handled below.
	_ = json.Unmarshal(raw, &env)

	msg := env.Error
	if msg == "" {
		msg = env.Message
	}

	if env.Error == maintenanceSentinel || status == http.StatusServiceUnavailable {
		return apperror.NewMaintenance(orDefault(env.Message, "backend is under maintenance"))
	}

	switch {
	case status == http.StatusUnauthorized:
		return apperror.NewUnauthorized(orDefault(msg, "backend rejected credentials"))
	case status == http.StatusForbidden:
		return apperror.NewForbidden(orDefault(msg, "not allowed"))
	case status == http.StatusNotFound:
		return apperror.NewNotFound(orDefault(msg, "not found"))
	case status >= 200 && status <= 299:
		// Envelope-less payloads have Success == false with no error
		// string; only an explicit error string marks a soft failure.
		if !env.Success && env.Error != "" {
			return apperror.NewUpstream(http.StatusBadGateway, env.Error)
		}
		return nil
	default:
		return apperror.NewUpstream(status, orDefault(msg, fmt.Sprintf("backend returned %d", status)))
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
