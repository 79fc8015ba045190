package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/config"
)

// Redis key prefixes. Everything the console stores is namespaced under
// vinsmoke_ so a shared Redis instance stays tidy.
const (
	sessionKeyPrefix  = "vinsmoke_session:"
	attemptsKeyPrefix = "vinsmoke_login_attempts:"
)

// AuthService defines the business logic contract for authentication.
// Handlers call these methods -- they never touch Redis directly.
type AuthService interface {
	// LoginURL returns the GitHub consent URL for the given CSRF state.
	LoginURL(state string) string

	// HandleCallback finishes the OAuth dance: exchanges the code,
	// fetches and validates the GitHub profile, stores the session, and
	// returns the advisory bearer token. identifier keys the failed
	// attempt counter (the caller's IP).
	HandleCallback(ctx context.Context, code, identifier string) (string, *Session, error)

	// ValidateToken resolves an advisory token to its live session and
	// slides the session's expiry window forward.
	ValidateToken(ctx context.Context, token string) (*Session, error)

	// Logout destroys the token's session. Unknown tokens are a no-op.
	Logout(ctx context.Context, token string) error
}

// authService implements AuthService with Redis-backed sessions and
// failed-attempt lockouts.
type authService struct {
	provider OAuthProvider
	redis    *redis.Client
	cfg      config.AuthConfig
	admins   map[string]bool
	now      func() time.Time
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(provider OAuthProvider, rdb *redis.Client, cfg config.AuthConfig) AuthService {
	admins := make(map[string]bool, len(cfg.AdminLogins))
	for _, login := range cfg.AdminLogins {
		admins[strings.ToLower(login)] = true
	}
	return &authService{
		provider: provider,
		redis:    rdb,
		cfg:      cfg,
		admins:   admins,
		now:      time.Now,
	}
}

// LoginURL returns the GitHub consent URL.
func (s *authService) LoginURL(state string) string {
	return s.provider.AuthURL(state)
}

// HandleCallback exchanges the authorization code and opens a session.
// Failures count against the identifier's lockout window; success resets it.
func (s *authService) HandleCallback(ctx context.Context, code, identifier string) (string, *Session, error) {
	if locked, err := s.isLockedOut(ctx, identifier); err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("checking lockout: %w", err))
	} else if locked {
		return "", nil, apperror.NewForbidden("too many failed login attempts, try again later")
	}

	accessToken, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.recordFailure(ctx, identifier)
		return "", nil, apperror.NewUnauthorized("authorization code rejected")
	}

	user, err := s.provider.FetchUser(ctx, accessToken)
	if err != nil {
		s.recordFailure(ctx, identifier)
		return "", nil, apperror.NewUnauthorized("could not load github profile")
	}
	if !user.Valid() {
		s.recordFailure(ctx, identifier)
		return "", nil, apperror.NewUnauthorized("github profile is missing required fields")
	}

	session := &Session{
		UserID:    user.ID,
		Login:     user.Login,
		AvatarURL: user.AvatarURL,
		IsAdmin:   s.admins[strings.ToLower(user.Login)],
		CreatedAt: s.now().UTC(),
		LastSeen:  s.now().UTC(),
	}

	if err := s.storeSession(ctx, session); err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("storing session: %w", err))
	}

	s.resetFailures(ctx, identifier)

	slog.Info("admin logged in",
		slog.String("login", session.Login),
		slog.Bool("is_admin", session.IsAdmin),
	)

	return EncodeToken(session), session, nil
}

// ValidateToken resolves a token to its session. Every successful lookup
// slides the 24h expiry window forward, so active admins stay signed in.
func (s *authService) ValidateToken(ctx context.Context, token string) (*Session, error) {
	claims, err := decodeToken(token)
	if err != nil {
		return nil, err
	}

	key := sessionKeyPrefix + strings.ToLower(claims.Login)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reading session: %w", err))
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("unmarshaling session: %w", err))
	}

	// The token must belong to this session, not an older one for the
	// same login. Tokens carry the creation time of the session they were
	// issued for, at millisecond precision.
	if session.UserID != claims.ID || !claims.issuedAt().Equal(session.CreatedAt.Truncate(time.Millisecond)) {
		return nil, apperror.NewUnauthorized("token does not match session")
	}

	session.LastSeen = s.now().UTC()
	if err := s.storeSession(ctx, &session); err != nil {
		// Sliding the window is best effort; the session is still valid.
		slog.Warn("failed to refresh session TTL", slog.String("login", session.Login), slog.Any("error", err))
	}

	return &session, nil
}

// Logout removes the token's session from Redis.
func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := decodeToken(token)
	if err != nil {
		return nil
	}

	key := sessionKeyPrefix + strings.ToLower(claims.Login)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting session: %w", err))
	}

	slog.Info("admin logged out", slog.String("login", claims.Login))
	return nil
}

// storeSession writes the session with a full TTL window.
func (s *authService) storeSession(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	key := sessionKeyPrefix + strings.ToLower(session.Login)
	return s.redis.Set(ctx, key, data, s.cfg.SessionTTL).Err()
}

// --- Lockout bookkeeping ---

// isLockedOut reports whether the identifier has exhausted its attempts.
func (s *authService) isLockedOut(ctx context.Context, identifier string) (bool, error) {
	count, err := s.redis.Get(ctx, attemptsKeyPrefix+identifier).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count >= s.cfg.MaxLoginAttempts, nil
}

// recordFailure bumps the attempt counter. The first failure opens the
// lockout window; later failures do not extend it.
func (s *authService) recordFailure(ctx context.Context, identifier string) {
	key := attemptsKeyPrefix + identifier
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("failed to record login attempt", slog.Any("error", err))
		return
	}
	if count == 1 {
		s.redis.Expire(ctx, key, s.cfg.LockoutDuration)
	}
}

// resetFailures clears the attempt counter after a successful login.
func (s *authService) resetFailures(ctx context.Context, identifier string) {
	if err := s.redis.Del(ctx, attemptsKeyPrefix+identifier).Err(); err != nil {
		slog.Warn("failed to reset login attempts", slog.Any("error", err))
	}
}

// generateState creates a random CSRF state string for the OAuth redirect.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
