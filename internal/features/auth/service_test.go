package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/config"
)

// mockProvider implements OAuthProvider with overridable function fields.
type mockProvider struct {
	authURLFn   func(state string) string
	exchangeFn  func(ctx context.Context, code string) (string, error)
	fetchUserFn func(ctx context.Context, accessToken string) (*GitHubUser, error)
}

func (m *mockProvider) AuthURL(state string) string {
	if m.authURLFn != nil {
		return m.authURLFn(state)
	}
	return "https://github.test/authorize?state=" + state
}

func (m *mockProvider) Exchange(ctx context.Context, code string) (string, error) {
	return m.exchangeFn(ctx, code)
}

func (m *mockProvider) FetchUser(ctx context.Context, accessToken string) (*GitHubUser, error) {
	return m.fetchUserFn(ctx, accessToken)
}

func happyProvider() *mockProvider {
	return &mockProvider{
		exchangeFn: func(ctx context.Context, code string) (string, error) {
			if code != "good-code" {
				return "", errors.New("bad code")
			}
			return "gh-access-token", nil
		},
		fetchUserFn: func(ctx context.Context, accessToken string) (*GitHubUser, error) {
			return &GitHubUser{ID: 42, Login: "sanji", AvatarURL: "https://avatars.test/42"}, nil
		},
	}
}

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		AdminLogins:      []string{"sanji"},
		SessionTTL:       24 * time.Hour,
		MaxLoginAttempts: 5,
		LockoutDuration:  15 * time.Minute,
	}
}

func newTestService(t *testing.T, provider OAuthProvider) (AuthService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewAuthService(provider, rdb, testConfig()), mr
}

func TestHandleCallbackCreatesSession(t *testing.T) {
	svc, mr := newTestService(t, happyProvider())
	ctx := context.Background()

	token, session, err := svc.HandleCallback(ctx, "good-code", "1.2.3.4")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if !session.IsAdmin {
		t.Error("sanji is on the admin list, session should be admin")
	}

	claims, err := decodeToken(token)
	if err != nil {
		t.Fatalf("decodeToken: %v", err)
	}
	if claims.ID != 42 || claims.Login != "sanji" {
		t.Errorf("claims = %+v", claims)
	}

	if !mr.Exists("vinsmoke_session:sanji") {
		t.Error("session not stored in redis")
	}
}

func TestHandleCallbackNonAdminStillGetsSession(t *testing.T) {
	p := happyProvider()
	p.fetchUserFn = func(ctx context.Context, accessToken string) (*GitHubUser, error) {
		return &GitHubUser{ID: 7, Login: "visitor", AvatarURL: "https://avatars.test/7"}, nil
	}
	svc, _ := newTestService(t, p)

	_, session, err := svc.HandleCallback(context.Background(), "good-code", "1.2.3.4")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if session.IsAdmin {
		t.Error("visitor must not be flagged admin")
	}
}

func TestHandleCallbackRejectsMalformedProfile(t *testing.T) {
	p := happyProvider()
	p.fetchUserFn = func(ctx context.Context, accessToken string) (*GitHubUser, error) {
		// Missing numeric id.
		return &GitHubUser{Login: "ghost", AvatarURL: "https://a"}, nil
	}
	svc, _ := newTestService(t, p)

	_, _, err := svc.HandleCallback(context.Background(), "good-code", "1.2.3.4")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 for malformed profile, got %v", err)
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	svc, mr := newTestService(t, happyProvider())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := svc.HandleCallback(ctx, "wrong-code", "9.9.9.9"); err == nil {
			t.Fatalf("attempt %d should fail", i)
		}
	}

	// Even a valid code is refused while locked out.
	_, _, err := svc.HandleCallback(ctx, "good-code", "9.9.9.9")
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != http.StatusForbidden {
		t.Fatalf("want 403 lockout, got %v", err)
	}

	// The lockout expires with its window.
	mr.FastForward(16 * time.Minute)
	if _, _, err := svc.HandleCallback(ctx, "good-code", "9.9.9.9"); err != nil {
		t.Fatalf("lockout should have expired: %v", err)
	}
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	svc, mr := newTestService(t, happyProvider())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		svc.HandleCallback(ctx, "wrong-code", "5.5.5.5")
	}
	if _, _, err := svc.HandleCallback(ctx, "good-code", "5.5.5.5"); err != nil {
		t.Fatalf("fifth attempt with valid code: %v", err)
	}
	if mr.Exists("vinsmoke_login_attempts:5.5.5.5") {
		t.Error("attempt counter should be cleared on success")
	}
}

func TestValidateTokenSlidesExpiry(t *testing.T) {
	svc, mr := newTestService(t, happyProvider())
	ctx := context.Background()

	token, _, err := svc.HandleCallback(ctx, "good-code", "1.2.3.4")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	// Burn most of the session TTL, then validate: the window slides.
	mr.FastForward(23 * time.Hour)
	if _, err := svc.ValidateToken(ctx, token); err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	// Another 23 hours would have killed the original window.
	mr.FastForward(23 * time.Hour)
	session, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken after slide: %v", err)
	}
	if session.Login != "sanji" {
		t.Errorf("login = %q", session.Login)
	}
}

func TestValidateTokenRejectsExpiredSession(t *testing.T) {
	svc, mr := newTestService(t, happyProvider())
	ctx := context.Background()

	token, _, err := svc.HandleCallback(ctx, "good-code", "1.2.3.4")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	mr.FastForward(25 * time.Hour)

	_, err = svc.ValidateToken(ctx, token)
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 for expired session, got %v", err)
	}
}

func TestValidateTokenRejectsStaleUserID(t *testing.T) {
	svc, _ := newTestService(t, happyProvider())
	ctx := context.Background()

	if _, _, err := svc.HandleCallback(ctx, "good-code", "1.2.3.4"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	// A token claiming the same login but a different account id must
	// not resolve to the stored session.
	forged := EncodeToken(&Session{UserID: 999, Login: "sanji", CreatedAt: time.Now()})
	if _, err := svc.ValidateToken(ctx, forged); err == nil {
		t.Fatal("forged token accepted")
	}
}

func TestValidateTokenRejectsTokenFromSupersededSession(t *testing.T) {
	svc, _ := newTestService(t, happyProvider())
	ctx := context.Background()

	impl := svc.(*authService)
	base := time.Now()
	impl.now = func() time.Time { return base }

	oldToken, _, err := svc.HandleCallback(ctx, "good-code", "1.2.3.4")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, oldToken); err != nil {
		t.Fatalf("ValidateToken before relogin: %v", err)
	}

	// A second login from another browser replaces the stored session.
	impl.now = func() time.Time { return base.Add(time.Minute) }
	newToken, _, err := svc.HandleCallback(ctx, "good-code", "1.2.3.4")
	if err != nil {
		t.Fatalf("second HandleCallback: %v", err)
	}

	if _, err := svc.ValidateToken(ctx, newToken); err != nil {
		t.Fatalf("ValidateToken for the live session: %v", err)
	}

	_, err = svc.ValidateToken(ctx, oldToken)
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 for the superseded token, got %v", err)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	svc, mr := newTestService(t, happyProvider())
	ctx := context.Background()

	token, _, err := svc.HandleCallback(ctx, "good-code", "1.2.3.4")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if mr.Exists("vinsmoke_session:sanji") {
		t.Error("session survived logout")
	}

	// Logging out again is a no-op, not an error.
	if err := svc.Logout(ctx, token); err != nil {
		t.Errorf("second Logout: %v", err)
	}
}
