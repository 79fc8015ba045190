package linking

import "testing"

func TestGenerateLeavesIdle(t *testing.T) {
	s := Reduce(Idle(), Event{Type: EventGenerate})
	if s.Phase != PhaseGenerating {
		t.Fatalf("phase = %s, want generating", s.Phase)
	}
}

func TestQRCodeArrival(t *testing.T) {
	s := Reduce(Idle(), Event{Type: EventGenerate})
	s = Reduce(s, Event{Type: EventQRCode, QRCode: "qr-data", QRCount: 1, SessionID: "s1"})

	if s.Phase != PhaseAwaitingScan {
		t.Fatalf("phase = %s, want awaiting_scan", s.Phase)
	}
	if s.QRCode != "qr-data" || s.SessionID != "s1" {
		t.Errorf("state = %+v", s)
	}
	if s.Countdown != countdownSeconds {
		t.Errorf("countdown = %d, want %d", s.Countdown, countdownSeconds)
	}
}

func TestQRRotationRefreshesCountdownAndClearsScanned(t *testing.T) {
	s := Reduce(Idle(), Event{Type: EventGenerate})
	s = Reduce(s, Event{Type: EventQRCode, QRCode: "first", QRCount: 1})
	s = Reduce(s, Event{Type: EventQRScanned})

	// Burn some of the countdown.
	for i := 0; i < 20; i++ {
		s = Reduce(s, Event{Type: EventTick})
	}

	// Rotation: same session, next image. Not an error, not a restart.
	s = Reduce(s, Event{Type: EventQRCode, QRCode: "second", QRCount: 2})
	if s.Phase != PhaseAwaitingScan {
		t.Fatalf("phase after rotation = %s", s.Phase)
	}
	if s.QRCode != "second" || s.QRCount != 2 {
		t.Errorf("rotated code not applied: %+v", s)
	}
	if s.Countdown != countdownSeconds {
		t.Errorf("rotation should reset countdown, got %d", s.Countdown)
	}
	if s.Scanned {
		t.Error("rotation should clear the scanned flag")
	}
}

func TestLocalExpiryAndServerExpiryAreIdempotent(t *testing.T) {
	s := Reduce(Idle(), Event{Type: EventGenerate})
	s = Reduce(s, Event{Type: EventQRCode, QRCode: "qr", QRCount: 1})

	// Tick all the way to zero: local expiry.
	for i := 0; i < countdownSeconds; i++ {
		s = Reduce(s, Event{Type: EventTick})
	}
	if s.Phase != PhaseIdle {
		t.Fatalf("phase after countdown = %s, want idle", s.Phase)
	}

	// The server's expiry push lands right after. Same state, no churn.
	after := Reduce(s, Event{Type: EventQRExpired})
	if after != s {
		t.Errorf("double expiry changed state: %+v -> %+v", s, after)
	}
}

func TestLateEventsAfterExpiryAreDropped(t *testing.T) {
	idle := Idle()
	if s := Reduce(idle, Event{Type: EventQRCode, QRCode: "stale", QRCount: 3}); s != idle {
		t.Errorf("stale qr-code revived an idle handshake: %+v", s)
	}
	if s := Reduce(idle, Event{Type: EventQRScanned}); s != idle {
		t.Errorf("stale qr-scanned changed idle state: %+v", s)
	}
	if s := Reduce(idle, Event{Type: EventTick}); s != idle {
		t.Errorf("tick changed idle state: %+v", s)
	}
}

func TestScannedThenConnected(t *testing.T) {
	s := Reduce(Idle(), Event{Type: EventGenerate})
	s = Reduce(s, Event{Type: EventQRCode, QRCode: "qr", QRCount: 1, SessionID: "s1"})
	s = Reduce(s, Event{Type: EventQRScanned})
	if s.Phase != PhaseScanned || !s.Scanned {
		t.Fatalf("state after scan = %+v", s)
	}

	s = Reduce(s, Event{Type: EventConnected, SessionID: "VINSMOKEm@abc"})
	if s.Phase != PhaseConnected {
		t.Fatalf("phase = %s, want connected", s.Phase)
	}
	if s.SessionID != "VINSMOKEm@abc" {
		t.Errorf("session id = %q", s.SessionID)
	}
	if s.QRCode != "" || s.Countdown != 0 {
		t.Errorf("connected state should be clean: %+v", s)
	}
}

func TestConnectedRequiresPrefixedSessionID(t *testing.T) {
	s := Reduce(Idle(), Event{Type: EventGenerate})
	s = Reduce(s, Event{Type: EventQRCode, QRCode: "qr", QRCount: 1})

	before := s
	s = Reduce(s, Event{Type: EventConnected, SessionID: "temp_123"})
	if s != before {
		t.Errorf("unprefixed session id treated as connected: %+v", s)
	}
}

func TestConnectedIgnoresLateHandshakeEvents(t *testing.T) {
	connected := State{Phase: PhaseConnected, SessionID: "VINSMOKEm@abc"}

	if s := Reduce(connected, Event{Type: EventQRCode, QRCode: "late", QRCount: 9}); s != connected {
		t.Errorf("qr rotation disturbed a connected session: %+v", s)
	}
	if s := Reduce(connected, Event{Type: EventQRExpired}); s != connected {
		t.Errorf("expiry disturbed a connected session: %+v", s)
	}
}

func TestGenerateFromConnectedStartsOver(t *testing.T) {
	connected := State{Phase: PhaseConnected, SessionID: "VINSMOKEm@abc"}

	s := Reduce(connected, Event{Type: EventGenerate})
	if s.Phase != PhaseGenerating {
		t.Fatalf("phase = %s, want generating", s.Phase)
	}
	if s.SessionID != "" {
		t.Errorf("old session id survived the restart: %q", s.SessionID)
	}

	// The replacement handshake proceeds normally.
	s = Reduce(s, Event{Type: EventQRCode, QRCode: "fresh", QRCount: 1, SessionID: "s9"})
	if s.Phase != PhaseAwaitingScan || s.QRCode != "fresh" {
		t.Errorf("new handshake did not take: %+v", s)
	}
}

func TestScanStopsTheCountdown(t *testing.T) {
	s := Reduce(Idle(), Event{Type: EventGenerate})
	s = Reduce(s, Event{Type: EventQRCode, QRCode: "qr", QRCount: 1, SessionID: "s1"})
	for i := 0; i < 30; i++ {
		s = Reduce(s, Event{Type: EventTick})
	}

	s = Reduce(s, Event{Type: EventQRScanned})
	if s.Countdown != 0 {
		t.Fatalf("countdown after scan = %d, want 0", s.Countdown)
	}

	// However long the backend takes to finish the link, the handshake
	// must not expire underneath it.
	for i := 0; i < 30; i++ {
		s = Reduce(s, Event{Type: EventTick})
	}
	if s.Phase != PhaseScanned {
		t.Fatalf("phase after waiting out the link = %s, want scanned", s.Phase)
	}

	s = Reduce(s, Event{Type: EventConnected, SessionID: "VINSMOKEm@abc"})
	if s.Phase != PhaseConnected {
		t.Errorf("phase = %s, want connected", s.Phase)
	}
}

func TestQRTimerSyncsCountdown(t *testing.T) {
	s := Reduce(Idle(), Event{Type: EventGenerate})
	s = Reduce(s, Event{Type: EventQRCode, QRCode: "qr", QRCount: 1})

	// The server's countdown overrides whatever the local ticker says.
	s = Reduce(s, Event{Type: EventQRTimer, TimeLeft: 42})
	if s.Countdown != 42 {
		t.Fatalf("countdown = %d, want 42", s.Countdown)
	}

	// Timer sync at zero is an expiry.
	if got := Reduce(s, Event{Type: EventQRTimer, TimeLeft: 0}); got != Idle() {
		t.Errorf("zero time-left should reduce to idle: %+v", got)
	}

	// Once scanned, the server countdown no longer applies.
	s = Reduce(s, Event{Type: EventQRScanned})
	if got := Reduce(s, Event{Type: EventQRTimer, TimeLeft: 7}); got != s {
		t.Errorf("timer sync disturbed a scanned handshake: %+v", got)
	}
}

func TestPairingCodeFlow(t *testing.T) {
	s := Reduce(Idle(), Event{Type: EventGenerate})
	s = Reduce(s, Event{Type: EventPairingCode, PairingCode: "ABCD-1234", SessionID: "s2"})

	if s.Phase != PhaseAwaitingEntry {
		t.Fatalf("phase = %s, want awaiting_entry", s.Phase)
	}
	if s.PairingCode != "ABCD-1234" || s.Countdown != countdownSeconds {
		t.Errorf("state = %+v", s)
	}
}

func TestResetAlwaysReturnsToIdle(t *testing.T) {
	states := []State{
		Idle(),
		{Phase: PhaseGenerating},
		{Phase: PhaseAwaitingScan, QRCode: "qr", Countdown: 30},
		{Phase: PhaseScanned, Scanned: true},
		{Phase: PhaseConnected, SessionID: "VINSMOKEm@abc"},
	}
	for _, s := range states {
		if got := Reduce(s, Event{Type: EventReset}); got != Idle() {
			t.Errorf("reset from %s = %+v", s.Phase, got)
		}
	}
}

func TestValidPhoneNumber(t *testing.T) {
	cases := []struct {
		phone string
		want  bool
	}{
		{"+15551234567", true},
		{"+1 555 123 4567", true},
		{"15551234567", false},   // missing plus
		{"+1555123", false},      // too few digits
		{"", false},
		{"+", false},
		{"+abcdefghijk", false},  // no digits
	}
	for _, tc := range cases {
		if got := ValidPhoneNumber(tc.phone); got != tc.want {
			t.Errorf("ValidPhoneNumber(%q) = %v, want %v", tc.phone, got, tc.want)
		}
	}
}
