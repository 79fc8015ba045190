package auth

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/vinsmoke-bot/console/internal/apperror"
)

// EncodeToken builds the advisory bearer token for a session: base64 over
// a small JSON claims object. It is deliberately not signed; possession of
// the token means nothing unless a matching session exists in Redis, and
// the backend independently re-validates every privileged request.
func EncodeToken(s *Session) string {
	claims := tokenClaims{
		ID:        s.UserID,
		Login:     s.Login,
		Timestamp: s.CreatedAt.UnixMilli(),
	}
	raw, _ := json.Marshal(claims)
	return base64.StdEncoding.EncodeToString(raw)
}

// decodeToken parses an advisory token back into its claims.
func decodeToken(token string) (*tokenClaims, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, apperror.NewUnauthorized("malformed token")
	}

	var claims tokenClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, apperror.NewUnauthorized("malformed token")
	}
	if claims.ID <= 0 || claims.Login == "" || claims.Timestamp <= 0 {
		return nil, apperror.NewUnauthorized("malformed token")
	}

	return &claims, nil
}

// issuedAt returns the creation time of the session the token was issued
// for.
func (c *tokenClaims) issuedAt() time.Time {
	return time.UnixMilli(c.Timestamp)
}
