package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "arcturus"

// ErrInvalidSession indicates a session cookie that failed verification.
// The chain treats it as a miss, not an error.
var ErrInvalidSession = errors.New("auth: invalid session")

type sessionClaims struct {
	Via string `json:"via,omitempty"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies the per-browser session cookie. It replaces
// the framework-managed signed session of the original deployment: an HS256
// JWT whose subject is the username.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions builds a session signer. A zero ttl falls back to 8h.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a session token for the identity.
func (s *Sessions) Issue(identity Identity) (string, error) {
	if strings.TrimSpace(identity.Username) == "" {
		return "", errors.New("auth: username is required")
	}
	now := s.now().UTC()
	claims := sessionClaims{
		Via: string(identity.Via),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   identity.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the token signature and claims and returns the identity it
// carries.
func (s *Sessions) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidSession
	}
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSession
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Identity{}, ErrInvalidSession
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrInvalidSession
	}
	return Identity{Username: claims.Subject, Via: ViaSession}, nil
}

// CookieName qualifies the cookie name with the deployment environment (or
// port) so environments sharing a browser origin never cross-authenticate.
func CookieName(stem, qualifier string) string {
	return stem + "_" + qualifier
}
