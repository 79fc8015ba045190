package linking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/upstream"
)

// fakeBackend implements Backend with overridable function fields.
type fakeBackend struct {
	createQRFn      func(ctx context.Context) (*upstream.LinkSession, error)
	createPairingFn func(ctx context.Context, phone string) (*upstream.LinkSession, error)
}

func (f *fakeBackend) CreateQRSession(ctx context.Context) (*upstream.LinkSession, error) {
	return f.createQRFn(ctx)
}
func (f *fakeBackend) CreatePairingSession(ctx context.Context, phone string) (*upstream.LinkSession, error) {
	return f.createPairingFn(ctx, phone)
}
func (f *fakeBackend) Session(ctx context.Context, id string) (*upstream.Session, error) {
	return nil, nil
}
func (f *fakeBackend) DeleteSession(ctx context.Context, token, id string) error { return nil }
func (f *fakeBackend) SessionFiles(ctx context.Context, token, id string) ([]upstream.SessionFile, error) {
	return nil, nil
}
func (f *fakeBackend) SessionFile(ctx context.Context, token, id, name string) ([]byte, string, error) {
	return nil, "", nil
}

// fakePushConn implements PushConn with an in-memory event channel.
type fakePushConn struct {
	mu     sync.Mutex
	joined []string
	events chan PushMessage
	closed bool
}

func newFakePushConn() *fakePushConn {
	return &fakePushConn{events: make(chan PushMessage, 16)}
}

func (f *fakePushConn) Join(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, sessionID)
	return nil
}

func (f *fakePushConn) Events() <-chan PushMessage { return f.events }

func (f *fakePushConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakePushConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakePushConn) push(msg PushMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.events <- msg
	}
}

// collector records emitted frames for assertions.
type collector struct {
	mu     sync.Mutex
	frames []OutMessage
}

func (c *collector) emit(msg OutMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, msg)
}

func (c *collector) hasWarning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		if f.Type == "warning" {
			return true
		}
	}
	return false
}

func (c *collector) hasError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.frames {
		if f.Type == "error" {
			return true
		}
	}
	return false
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQRHandshakeEndToEnd(t *testing.T) {
	conn := newFakePushConn()
	backend := &fakeBackend{
		createQRFn: func(ctx context.Context) (*upstream.LinkSession, error) {
			return &upstream.LinkSession{SessionID: "temp_1"}, nil
		},
	}
	out := &collector{}
	flow := NewFlow(backend, func(ctx context.Context) (PushConn, error) { return conn, nil }, out.emit)
	defer flow.Close()

	flow.HandleCommand(context.Background(), Command{Type: CommandGenerateQR})

	if got := flow.State(); got.Phase != PhaseGenerating {
		t.Fatalf("phase after generate = %s", got.Phase)
	}
	conn.mu.Lock()
	joined := append([]string(nil), conn.joined...)
	conn.mu.Unlock()
	if len(joined) != 1 || joined[0] != "temp_1" {
		t.Fatalf("joined = %v, want [temp_1]", joined)
	}

	conn.push(PushMessage{Event: "qr-code", SessionID: "temp_1", QRCode: "qr-image", QRCount: 1})
	waitFor(t, func() bool { return flow.State().Phase == PhaseAwaitingScan }, "awaiting_scan")
	if s := flow.State(); s.QRCode != "qr-image" || s.Countdown != countdownSeconds {
		t.Errorf("state after qr-code: %+v", s)
	}

	conn.push(PushMessage{Event: "qr-scanned"})
	waitFor(t, func() bool { return flow.State().Phase == PhaseScanned }, "scanned")

	conn.push(PushMessage{Event: "session-connected", SessionID: "VINSMOKEm@final"})
	waitFor(t, func() bool { return flow.State().Phase == PhaseConnected }, "connected")

	if s := flow.State(); s.SessionID != "VINSMOKEm@final" {
		t.Errorf("connected session id = %q", s.SessionID)
	}
	// Connected is terminal: the subscription is released.
	waitFor(t, conn.isClosed, "push channel teardown")
}

func TestMaintenanceSurfacesAsSoftWarning(t *testing.T) {
	backend := &fakeBackend{
		createQRFn: func(ctx context.Context) (*upstream.LinkSession, error) {
			return nil, apperror.NewMaintenance("backend is under maintenance")
		},
	}
	out := &collector{}
	flow := NewFlow(backend, func(ctx context.Context) (PushConn, error) {
		t.Fatal("push channel must not be dialed when the session fails to open")
		return nil, nil
	}, out.emit)
	defer flow.Close()

	flow.HandleCommand(context.Background(), Command{Type: CommandGenerateQR})

	if !out.hasWarning() {
		t.Error("maintenance should emit a warning frame")
	}
	if out.hasError() {
		t.Error("maintenance is a soft failure, not an error")
	}
	if got := flow.State(); got.Phase != PhaseIdle {
		t.Errorf("phase after maintenance = %s, want idle", got.Phase)
	}
}

func TestInvalidPhoneNeverHitsNetwork(t *testing.T) {
	backend := &fakeBackend{
		createPairingFn: func(ctx context.Context, phone string) (*upstream.LinkSession, error) {
			t.Fatal("invalid phone number must not reach the backend")
			return nil, nil
		},
	}
	out := &collector{}
	flow := NewFlow(backend, func(ctx context.Context) (PushConn, error) { return newFakePushConn(), nil }, out.emit)
	defer flow.Close()

	flow.HandleCommand(context.Background(), Command{Type: CommandGeneratePairing, PhoneNumber: "12345"})

	if !out.hasError() {
		t.Error("invalid phone should emit an error frame")
	}
	if got := flow.State(); got.Phase != PhaseIdle {
		t.Errorf("phase = %s, want idle", got.Phase)
	}
}

func TestPairingCodeFromRESTResponse(t *testing.T) {
	conn := newFakePushConn()
	backend := &fakeBackend{
		createPairingFn: func(ctx context.Context, phone string) (*upstream.LinkSession, error) {
			return &upstream.LinkSession{SessionID: "temp_2", PairingCode: "ABCD-1234"}, nil
		},
	}
	out := &collector{}
	flow := NewFlow(backend, func(ctx context.Context) (PushConn, error) { return conn, nil }, out.emit)
	defer flow.Close()

	flow.HandleCommand(context.Background(), Command{Type: CommandGeneratePairing, PhoneNumber: "+15551234567"})

	s := flow.State()
	if s.Phase != PhaseAwaitingEntry || s.PairingCode != "ABCD-1234" {
		t.Errorf("state = %+v", s)
	}
}

func TestLocalCountdownExpiryTearsDown(t *testing.T) {
	conn := newFakePushConn()
	backend := &fakeBackend{
		createQRFn: func(ctx context.Context) (*upstream.LinkSession, error) {
			return &upstream.LinkSession{SessionID: "temp_3", QRCode: "qr"}, nil
		},
	}
	out := &collector{}
	flow := NewFlow(backend, func(ctx context.Context) (PushConn, error) { return conn, nil }, out.emit)
	flow.tick = time.Millisecond
	defer flow.Close()

	flow.HandleCommand(context.Background(), Command{Type: CommandGenerateQR})

	waitFor(t, func() bool { return flow.State().Phase == PhaseIdle }, "countdown expiry")
	waitFor(t, conn.isClosed, "push channel teardown")
}

func TestScannedHandshakeOutlivesTheTicker(t *testing.T) {
	conn := newFakePushConn()
	backend := &fakeBackend{
		createQRFn: func(ctx context.Context) (*upstream.LinkSession, error) {
			return &upstream.LinkSession{SessionID: "temp_5", QRCode: "qr"}, nil
		},
	}
	out := &collector{}
	flow := NewFlow(backend, func(ctx context.Context) (PushConn, error) { return conn, nil }, out.emit)
	flow.tick = time.Millisecond
	defer flow.Close()

	flow.HandleCommand(context.Background(), Command{Type: CommandGenerateQR})
	conn.push(PushMessage{Event: "qr-scanned"})
	waitFor(t, func() bool { return flow.State().Phase == PhaseScanned }, "scanned")

	// Give the ticker far more than a full countdown's worth of ticks.
	// The backend may take arbitrarily long to finish the link; the
	// handshake must wait for it, not expire.
	time.Sleep(150 * time.Millisecond)
	if got := flow.State(); got.Phase != PhaseScanned {
		t.Fatalf("phase after waiting = %s, want scanned", got.Phase)
	}
	if conn.isClosed() {
		t.Fatal("push channel must stay open while the link completes")
	}

	conn.push(PushMessage{Event: "session-connected", SessionID: "VINSMOKEm@late"})
	waitFor(t, func() bool { return flow.State().Phase == PhaseConnected }, "connected")
}

func TestRegenerateAfterConnectedStartsFreshHandshake(t *testing.T) {
	first := newFakePushConn()
	second := newFakePushConn()
	conns := []*fakePushConn{first, second}
	dialCount := 0

	backend := &fakeBackend{
		createQRFn: func(ctx context.Context) (*upstream.LinkSession, error) {
			return &upstream.LinkSession{SessionID: "temp_6"}, nil
		},
	}
	out := &collector{}
	flow := NewFlow(backend, func(ctx context.Context) (PushConn, error) {
		c := conns[dialCount]
		dialCount++
		return c, nil
	}, out.emit)
	defer flow.Close()

	ctx := context.Background()
	flow.HandleCommand(ctx, Command{Type: CommandGenerateQR})
	first.push(PushMessage{Event: "session-connected", SessionID: "VINSMOKEm@done"})
	waitFor(t, func() bool { return flow.State().Phase == PhaseConnected }, "connected")

	// Linking another phone from the connected screen must not leave the
	// UI stuck on the old session while a new one burns a slot upstream.
	flow.HandleCommand(ctx, Command{Type: CommandGenerateQR})
	if got := flow.State(); got.Phase == PhaseConnected {
		t.Fatalf("regenerate left the flow on the old session: %+v", got)
	}

	second.push(PushMessage{Event: "qr-code", SessionID: "temp_6", QRCode: "fresh", QRCount: 1})
	waitFor(t, func() bool { return flow.State().QRCode == "fresh" }, "fresh qr after regenerate")
	if dialCount != 2 {
		t.Errorf("dials = %d, want 2", dialCount)
	}
}

func TestServerTimerPushSyncsCountdown(t *testing.T) {
	conn := newFakePushConn()
	backend := &fakeBackend{
		createQRFn: func(ctx context.Context) (*upstream.LinkSession, error) {
			return &upstream.LinkSession{SessionID: "temp_7", QRCode: "qr"}, nil
		},
	}
	out := &collector{}
	flow := NewFlow(backend, func(ctx context.Context) (PushConn, error) { return conn, nil }, out.emit)
	defer flow.Close()

	flow.HandleCommand(context.Background(), Command{Type: CommandGenerateQR})
	waitFor(t, func() bool { return flow.State().Phase == PhaseAwaitingScan }, "awaiting_scan")

	conn.push(PushMessage{Event: "qr-timer", TimeLeft: 17})
	waitFor(t, func() bool { return flow.State().Countdown == 17 }, "countdown sync")

	// A zero time-left from the server is an expiry: state resets and the
	// subscription is released.
	conn.push(PushMessage{Event: "qr-timer", TimeLeft: 0})
	waitFor(t, func() bool { return flow.State().Phase == PhaseIdle }, "expiry via timer push")
	waitFor(t, conn.isClosed, "push channel teardown")
}

func TestSecondGenerateSupersedesFirstSession(t *testing.T) {
	first := newFakePushConn()
	second := newFakePushConn()
	conns := []*fakePushConn{first, second}
	dialCount := 0

	backend := &fakeBackend{
		createQRFn: func(ctx context.Context) (*upstream.LinkSession, error) {
			return &upstream.LinkSession{SessionID: "temp_4"}, nil
		},
	}
	out := &collector{}
	flow := NewFlow(backend, func(ctx context.Context) (PushConn, error) {
		c := conns[dialCount]
		dialCount++
		return c, nil
	}, out.emit)
	defer flow.Close()

	ctx := context.Background()
	flow.HandleCommand(ctx, Command{Type: CommandGenerateQR})
	flow.HandleCommand(ctx, Command{Type: CommandGenerateQR})

	// The first subscription is gone; its late events must not disturb
	// the new handshake.
	if !first.isClosed() {
		t.Error("first push channel should be closed after regenerate")
	}

	second.push(PushMessage{Event: "qr-code", SessionID: "temp_4", QRCode: "fresh", QRCount: 1})
	waitFor(t, func() bool { return flow.State().QRCode == "fresh" }, "fresh qr on second session")
}
