package linking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/upstream"
)

// Backend is the slice of the upstream client this package consumes.
type Backend interface {
	CreateQRSession(ctx context.Context) (*upstream.LinkSession, error)
	CreatePairingSession(ctx context.Context, phone string) (*upstream.LinkSession, error)
	Session(ctx context.Context, id string) (*upstream.Session, error)
	DeleteSession(ctx context.Context, token, id string) error
	SessionFiles(ctx context.Context, token, id string) ([]upstream.SessionFile, error)
	SessionFile(ctx context.Context, token, id, name string) ([]byte, string, error)
}

// Command is one instruction from the browser relay.
type Command struct {
	Type        string `json:"type"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Browser command types.
const (
	CommandGenerateQR      = "generate-qr"
	CommandGeneratePairing = "generate-pairing"
	CommandReset           = "reset"
)

// OutMessage is one frame sent to the browser.
type OutMessage struct {
	Type    string `json:"type"` // state, warning, error
	State   *State `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
}

// Flow drives one handshake for one browser connection. It owns the
// state, the local countdown ticker, and the lazily dialed push channel
// subscription; every state change is emitted to the browser.
type Flow struct {
	backend Backend
	dial    PushDialer
	emit    func(OutMessage)
	tick    time.Duration

	mu    sync.Mutex
	state State
	conn  PushConn
	stop  chan struct{}
	// gen tags the active ticker and push consumers; teardown bumps it
	// so events from a superseded session are dropped.
	gen int
}

// NewFlow creates a flow that reports to emit. One flow serves one
// browser relay connection.
func NewFlow(backend Backend, dial PushDialer, emit func(OutMessage)) *Flow {
	return &Flow{
		backend: backend,
		dial:    dial,
		emit:    emit,
		tick:    time.Second,
		state:   Idle(),
	}
}

// State returns the current handshake state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// HandleCommand processes one browser instruction.
func (f *Flow) HandleCommand(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CommandGenerateQR:
		f.generate(ctx, func() (*upstream.LinkSession, error) {
			return f.backend.CreateQRSession(ctx)
		})

	case CommandGeneratePairing:
		if !ValidPhoneNumber(cmd.PhoneNumber) {
			// Gate before any network call.
			f.emit(OutMessage{Type: "error", Message: "phone number must start with + and contain at least 10 digits"})
			return
		}
		f.generate(ctx, func() (*upstream.LinkSession, error) {
			return f.backend.CreatePairingSession(ctx, cmd.PhoneNumber)
		})

	case CommandReset:
		f.teardown()
		f.apply(Event{Type: EventReset})

	default:
		f.emit(OutMessage{Type: "error", Message: "unknown command: " + cmd.Type})
	}
}

// Close tears the flow down when the browser disconnects.
func (f *Flow) Close() {
	f.teardown()
}

// generate runs one session creation: reduce to generating, call the
// backend, subscribe to its push events, and fold any immediate code from
// the REST response into the state.
func (f *Flow) generate(ctx context.Context, create func() (*upstream.LinkSession, error)) {
	f.teardown()
	f.apply(Event{Type: EventGenerate})

	link, err := create()
	if err != nil {
		if apperror.IsMaintenance(err) {
			// Soft failure: the console stays usable, linking is just
			// unavailable until the backend comes back.
			f.emit(OutMessage{Type: "warning", Message: "the bot backend is under maintenance, try again later"})
		} else {
			f.emit(OutMessage{Type: "error", Message: apperror.SafeMessage(err)})
		}
		f.apply(Event{Type: EventReset})
		return
	}

	if err := f.subscribe(ctx, link.SessionID); err != nil {
		slog.Warn("push channel unavailable", slog.Any("error", err))
		f.emit(OutMessage{Type: "error", Message: "could not open the event channel"})
		f.apply(Event{Type: EventReset})
		return
	}

	f.mu.Lock()
	f.state.SessionID = link.SessionID
	f.mu.Unlock()

	// The REST response may already carry the first code; later ones
	// arrive over the push channel.
	if link.QRCode != "" {
		f.apply(Event{Type: EventQRCode, QRCode: link.QRCode, QRCount: 1, SessionID: link.SessionID})
	}
	if link.PairingCode != "" {
		f.apply(Event{Type: EventPairingCode, PairingCode: link.PairingCode, SessionID: link.SessionID})
	}
}

// subscribe dials the push channel, joins the session, and starts the
// consumer and countdown goroutines for this generation.
func (f *Flow) subscribe(ctx context.Context, sessionID string) error {
	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}
	if err := conn.Join(sessionID); err != nil {
		conn.Close()
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.stop = make(chan struct{})
	f.gen++
	gen := f.gen
	stop := f.stop
	f.mu.Unlock()

	go f.consume(gen, conn)
	go f.countdown(gen, stop)
	return nil
}

// consume folds push events into the state until the subscription dies.
func (f *Flow) consume(gen int, conn PushConn) {
	for msg := range conn.Events() {
		if !f.current(gen) {
			return
		}
		f.handlePush(gen, msg)
	}
}

// handlePush maps one push message onto a reducer event.
func (f *Flow) handlePush(gen int, msg PushMessage) {
	switch EventType(msg.Event) {
	case EventQRCode:
		// The session id can change when the backend reissues the
		// handshake; follow it unless it is already final.
		f.rejoinIfMoved(msg.SessionID)
		f.apply(Event{Type: EventQRCode, QRCode: msg.QRCode, QRCount: msg.QRCount, SessionID: msg.SessionID})

	case EventPairingCode:
		f.rejoinIfMoved(msg.SessionID)
		f.apply(Event{Type: EventPairingCode, PairingCode: msg.PairingCode, SessionID: msg.SessionID})

	case EventQRScanned:
		f.apply(Event{Type: EventQRScanned})

	case EventQRTimer:
		f.apply(Event{Type: EventQRTimer, TimeLeft: msg.TimeLeft})
		f.teardownIfInactive()

	case EventQRExpired:
		f.apply(Event{Type: EventQRExpired})
		f.teardownIfInactive()

	case EventConnected:
		f.apply(Event{Type: EventConnected, SessionID: msg.SessionID})
		f.teardownIfInactive()

	default:
		slog.Debug("ignoring push event", slog.String("event", msg.Event))
	}
}

// countdown ticks the local expiry clock for this generation.
func (f *Flow) countdown(gen int, stop chan struct{}) {
	ticker := time.NewTicker(f.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !f.current(gen) {
				return
			}
			f.apply(Event{Type: EventTick})
			if f.teardownIfInactive() {
				return
			}
		case <-stop:
			return
		}
	}
}

// apply reduces one event and emits the new state when it changed.
func (f *Flow) apply(e Event) {
	f.mu.Lock()
	next := Reduce(f.state, e)
	changed := next != f.state
	f.state = next
	f.mu.Unlock()

	if changed {
		f.emit(OutMessage{Type: "state", State: &next})
	}
}

// rejoinIfMoved follows a session id change announced by the backend.
func (f *Flow) rejoinIfMoved(sessionID string) {
	if sessionID == "" || upstream.IsConnectedSessionID(sessionID) {
		return
	}

	f.mu.Lock()
	conn := f.conn
	moved := f.state.SessionID != "" && f.state.SessionID != sessionID
	f.mu.Unlock()

	if moved && conn != nil {
		if err := conn.Join(sessionID); err != nil {
			slog.Warn("rejoining moved session failed", slog.Any("error", err))
		}
	}
}

// teardownIfInactive releases the channel and ticker once the handshake
// has left its active phases. Returns true when torn down.
func (f *Flow) teardownIfInactive() bool {
	f.mu.Lock()
	active := f.state.Active()
	f.mu.Unlock()
	if active {
		return false
	}
	f.teardown()
	return true
}

// teardown closes the push subscription and stops the countdown. Safe to
// call repeatedly.
func (f *Flow) teardown() {
	f.mu.Lock()
	conn := f.conn
	stop := f.stop
	f.conn = nil
	f.stop = nil
	f.gen++
	f.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if stop != nil {
		close(stop)
	}
}

// current reports whether gen is still the live generation.
func (f *Flow) current(gen int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen == gen
}
