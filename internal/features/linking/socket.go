package linking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// PushMessage is one event from the backend's push channel.
type PushMessage struct {
	Event       string `json:"event"`
	SessionID   string `json:"sessionId,omitempty"`
	QRCode      string `json:"qrCode,omitempty"`
	QRCount     int    `json:"qrCount,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
	TimeLeft    int    `json:"timeLeft,omitempty"`
}

// PushConn is one subscription to the backend's push channel. Closing it
// unregisters the flow, so events for superseded sessions are dropped on
// the floor instead of reaching a stale handshake.
type PushConn interface {
	// Join subscribes to events for one session id.
	Join(sessionID string) error

	// Events delivers pushed messages. The channel closes when the
	// connection dies or Close is called.
	Events() <-chan PushMessage

	Close() error
}

// PushDialer opens a push channel connection. The flow dials lazily, on
// the first generate, so idle consoles hold no upstream sockets.
type PushDialer func(ctx context.Context) (PushConn, error)

// NewPushDialer returns a dialer for the backend's socket URL.
func NewPushDialer(socketURL string) PushDialer {
	return func(ctx context.Context) (PushConn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, socketURL, nil)
		if err != nil {
			return nil, fmt.Errorf("dialing push channel: %w", err)
		}

		pc := &pushConn{
			conn:   conn,
			events: make(chan PushMessage, 16),
		}
		go pc.readLoop()
		return pc, nil
	}
}

// pushConn implements PushConn over a gorilla websocket.
type pushConn struct {
	conn   *websocket.Conn
	events chan PushMessage
}

func (p *pushConn) Join(sessionID string) error {
	msg := map[string]string{"event": "join-session", "sessionId": sessionID}
	if err := p.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("joining session %s: %w", sessionID, err)
	}
	return nil
}

func (p *pushConn) Events() <-chan PushMessage {
	return p.events
}

func (p *pushConn) Close() error {
	return p.conn.Close()
}

// readLoop decodes pushed frames until the connection dies. Undecodable
// frames are skipped rather than killing the subscription.
func (p *pushConn) readLoop() {
	defer close(p.events)
	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg PushMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Debug("skipping undecodable push frame", slog.Any("error", err))
			continue
		}
		if msg.Event == "" {
			continue
		}

		select {
		case p.events <- msg:
		default:
			// A stalled consumer loses the oldest semantics anyway once
			// the next state lands; dropping here avoids a deadlock.
			slog.Warn("push event dropped, consumer too slow", slog.String("event", msg.Event))
		}
	}
}
