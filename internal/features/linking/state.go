// Package linking drives the WhatsApp session handshake: the admin asks
// for a QR code or a pairing code, the backend pushes progress events over
// its socket channel, and the console relays a live state snapshot to the
// browser after every transition. The whole handshake is modeled as a
// pure reducer so every edge (QR rotation, double expiry, late events) is
// a plain state table instead of scattered conditionals.
package linking

import (
	"strings"

	"github.com/vinsmoke-bot/console/internal/upstream"
)

// countdownSeconds is the lifetime of one QR image or pairing code. The
// backend rotates QR codes on the same schedule; the local countdown is a
// safety net for when the expiry push never arrives.
const countdownSeconds = 60

// Phase is the handshake's current stage.
type Phase string

const (
	// PhaseIdle is the rest state, before generation or after expiry.
	PhaseIdle Phase = "idle"

	// PhaseGenerating covers the REST round trip that opens a session.
	PhaseGenerating Phase = "generating"

	// PhaseAwaitingScan shows a QR image waiting to be scanned.
	PhaseAwaitingScan Phase = "awaiting_scan"

	// PhaseAwaitingEntry shows a pairing code waiting to be typed.
	PhaseAwaitingEntry Phase = "awaiting_entry"

	// PhaseScanned means the phone scanned the QR and the backend is
	// finishing the link.
	PhaseScanned Phase = "scanned"

	// PhaseConnected ends the handshake: the session id carries the
	// connected prefix and the bot is live. Only a fresh generate or a
	// reset leaves it.
	PhaseConnected Phase = "connected"
)

// EventType discriminates handshake events.
type EventType string

const (
	// EventGenerate starts a handshake (either mode).
	EventGenerate EventType = "generate"

	// EventQRCode delivers a QR image. QRCount above one is a rotation
	// of the same session, not a new handshake.
	EventQRCode EventType = "qr-code"

	// EventPairingCode delivers a typeable pairing code.
	EventPairingCode EventType = "pairing-code"

	// EventQRScanned means the phone scanned the code.
	EventQRScanned EventType = "qr-scanned"

	// EventQRTimer is the backend's countdown sync; its value overrides
	// the locally ticked countdown.
	EventQRTimer EventType = "qr-timer"

	// EventQRExpired is the backend's expiry push.
	EventQRExpired EventType = "qr-expired"

	// EventConnected completes the handshake with the final session id.
	EventConnected EventType = "session-connected"

	// EventTick decrements the local countdown by one second.
	EventTick EventType = "tick"

	// EventReset returns to idle on user request or teardown.
	EventReset EventType = "reset"
)

// Event is one handshake input, from the browser, the push channel, or
// the local ticker.
type Event struct {
	Type        EventType
	SessionID   string
	QRCode      string
	QRCount     int
	PairingCode string
	TimeLeft    int
}

// State is the full handshake state relayed to the browser.
type State struct {
	Phase       Phase  `json:"phase"`
	SessionID   string `json:"sessionId,omitempty"`
	QRCode      string `json:"qrCode,omitempty"`
	QRCount     int    `json:"qrCount,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
	Countdown   int    `json:"countdown"`
	Scanned     bool   `json:"scanned"`
}

// Idle returns the rest state.
func Idle() State {
	return State{Phase: PhaseIdle}
}

// Active reports whether the handshake is in progress, meaning the ticker
// and push channel should be running.
func (s State) Active() bool {
	switch s.Phase {
	case PhaseGenerating, PhaseAwaitingScan, PhaseAwaitingEntry, PhaseScanned:
		return true
	}
	return false
}

// Reduce applies one event to the state and returns the next state. It is
// pure: no I/O, no clocks, no side effects. Unknown or out-of-phase
// events leave the state unchanged, which is what makes double expiries
// and late pushes harmless.
func Reduce(s State, e Event) State {
	switch e.Type {
	case EventGenerate:
		// Generating always starts over, even from a connected session:
		// the admin asking for a new code means they want a new link.
		next := Idle()
		next.Phase = PhaseGenerating
		return next

	case EventQRCode:
		// A connected session has no use for further QR images, and a
		// rotation after expiry must not revive a dead handshake.
		if s.Phase == PhaseConnected || s.Phase == PhaseIdle {
			return s
		}
		s.Phase = PhaseAwaitingScan
		s.QRCode = e.QRCode
		s.QRCount = e.QRCount
		s.Countdown = countdownSeconds
		s.Scanned = false
		s.PairingCode = ""
		if e.SessionID != "" {
			s.SessionID = e.SessionID
		}
		return s

	case EventPairingCode:
		if s.Phase == PhaseConnected || s.Phase == PhaseIdle {
			return s
		}
		s.Phase = PhaseAwaitingEntry
		s.PairingCode = e.PairingCode
		s.Countdown = countdownSeconds
		s.QRCode = ""
		if e.SessionID != "" {
			s.SessionID = e.SessionID
		}
		return s

	case EventQRScanned:
		if s.Phase != PhaseAwaitingScan {
			return s
		}
		s.Phase = PhaseScanned
		s.Scanned = true
		// The code has done its job; the backend finishes the link from
		// here, so the expiry clock stops.
		s.Countdown = 0
		return s

	case EventConnected:
		if !upstream.IsConnectedSessionID(e.SessionID) {
			return s
		}
		return State{
			Phase:     PhaseConnected,
			SessionID: e.SessionID,
		}

	case EventQRTimer:
		// The server's countdown is authoritative while a code is on
		// screen; once scanned or finished there is nothing to sync.
		if s.Phase != PhaseAwaitingScan && s.Phase != PhaseAwaitingEntry {
			return s
		}
		if e.TimeLeft <= 0 {
			return Idle()
		}
		s.Countdown = e.TimeLeft
		return s

	case EventTick:
		if !s.Active() || s.Countdown <= 0 {
			return s
		}
		s.Countdown--
		if s.Countdown == 0 {
			// Local expiry. The backend's qr-expired may land right
			// after; both collapse to the same idle state.
			return Idle()
		}
		return s

	case EventQRExpired:
		if s.Phase == PhaseConnected {
			return s
		}
		return Idle()

	case EventReset:
		return Idle()
	}

	return s
}

// ValidPhoneNumber gates the pairing flow before any network call: the
// number must start with + and contain at least ten digits.
func ValidPhoneNumber(phone string) bool {
	if !strings.HasPrefix(phone, "+") {
		return false
	}
	digits := 0
	for _, r := range phone[1:] {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10
}
