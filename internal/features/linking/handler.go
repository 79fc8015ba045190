package linking

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/features/auth"
)

// Handler handles HTTP and websocket requests for session linking.
type Handler struct {
	backend  Backend
	dial     PushDialer
	upgrader websocket.Upgrader
}

// NewHandler creates a new linking handler. allowedOrigins gates the
// websocket upgrade the same way the CORS layer gates plain requests.
func NewHandler(backend Backend, dial PushDialer, allowedOrigins []string) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	wildcard := false
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
		}
		origins[o] = true
	}

	return &Handler{
		backend: backend,
		dial:    dial,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if wildcard {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
	}
}

// Relay is the browser's live handshake channel (GET /ws/session). Every
// state transition is pushed as a JSON frame; the browser sends generate
// and reset commands on the same socket.
func (h *Handler) Relay(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Emits come from the reducer, the ticker, and the push consumer;
	// gorilla allows one concurrent writer, so serialize them.
	var writeMu sync.Mutex
	emit := func(msg OutMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			// The read loop notices the dead socket and tears down.
			return
		}
	}

	flow := NewFlow(h.backend, h.dial, emit)
	defer flow.Close()

	// Initial snapshot so the browser renders idle immediately.
	state := flow.State()
	emit(OutMessage{Type: "state", State: &state})

	ctx := c.Request().Context()
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return nil
		}
		flow.HandleCommand(ctx, cmd)
	}
}

// CreateQR opens a QR handshake over plain REST
// (POST /api/session/qr). The push events still require the relay; this
// exists for clients that poll.
func (h *Handler) CreateQR(c echo.Context) error {
	link, err := h.backend.CreateQRSession(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, link)
}

// CreatePairing opens a pairing-code handshake
// (POST /api/session/pairing).
func (h *Handler) CreatePairing(c echo.Context) error {
	var body struct {
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.NewBadRequest("invalid pairing body")
	}
	if !ValidPhoneNumber(body.PhoneNumber) {
		return apperror.NewValidation("phone number must start with + and contain at least 10 digits")
	}

	link, err := h.backend.CreatePairingSession(c.Request().Context(), body.PhoneNumber)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, link)
}

// GetSession returns one session's status (GET /api/session/:id).
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.backend.Session(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteSession unlinks a session (DELETE /api/session/:id).
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.backend.DeleteSession(c.Request().Context(), auth.GetToken(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// SessionFiles lists a session's stored files
// (GET /api/session/:id/filelist).
func (h *Handler) SessionFiles(c echo.Context) error {
	files, err := h.backend.SessionFiles(c.Request().Context(), auth.GetToken(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"files": files})
}

// SessionFile streams one stored file (GET /api/session/:id/file/:name).
func (h *Handler) SessionFile(c echo.Context) error {
	blob, contentType, err := h.backend.SessionFile(c.Request().Context(), auth.GetToken(c), c.Param("id"), c.Param("name"))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, contentType, blob)
}
