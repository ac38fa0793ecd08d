package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"arcturus.sanger.ac.uk/internal/audit"
	"arcturus.sanger.ac.uk/internal/directory"
)

const (
	defaultAuthTokenTTL = 48 * time.Hour
	defaultAPITokenTTL  = 2 * 365 * 24 * time.Hour
)

// DirectoryBinder verifies interactive credentials with a directory bind.
type DirectoryBinder interface {
	BindAs(ctx context.Context, username, password string) error
}

// Service implements interactive login and logout. Credential verification
// is delegated to the directory; the service only manages principal rows
// and their tokens.
type Service struct {
	dir          DirectoryBinder
	sessions     *Sessions
	authTokenTTL time.Duration
	apiTokenTTL  time.Duration
	now          func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAuthTokenTTL overrides the browser token lifetime.
func WithAuthTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.authTokenTTL = ttl
		}
	}
}

// WithAPITokenTTL overrides the API token lifetime.
func WithAPITokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.apiTokenTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the login service.
func NewService(dir DirectoryBinder, sessions *Sessions, opts ...ServiceOption) *Service {
	svc := &Service{
		dir:          dir,
		sessions:     sessions,
		authTokenTTL: defaultAuthTokenTTL,
		apiTokenTTL:  defaultAPITokenTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// LoginOutcome is a successful interactive login: the persisted principal,
// the cookie value to set and its expiry, and a fresh session token.
type LoginOutcome struct {
	Principal    *Principal
	CookieValue  string
	CookieExpiry time.Time
	SessionToken string
}

// Login verifies the credentials against the directory and establishes the
// principal's tokens. A missing browser token (or an expired one) is
// rotated; the API token is generated once and then kept stable. Nothing
// is persisted when the bind is rejected.
func (s *Service) Login(ctx context.Context, store Store, username, password string) (LoginOutcome, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginOutcome{}, ErrBadCredentials
	}

	if err := s.dir.BindAs(ctx, username, password); err != nil {
		if errors.Is(err, directory.ErrBindRejected) {
			_ = audit.LogEvent(ctx, "auth.login.denied", map[string]any{"username": username})
			return LoginOutcome{}, ErrBadCredentials
		}
		return LoginOutcome{}, err
	}

	p, err := store.CreateOrGet(ctx, username)
	if err != nil {
		return LoginOutcome{}, err
	}

	now := s.now().UTC()
	if !p.HasAuthToken(now) {
		token := NewToken(now)
		expiry := now.Add(s.authTokenTTL)
		p.AuthToken = &token
		p.AuthTokenExpiry = &expiry
	}
	if p.APIToken == nil || *p.APIToken == "" {
		token := NewToken(now)
		expiry := now.Add(s.apiTokenTTL)
		p.APIToken = &token
		p.APITokenExpiry = &expiry
	}

	if err := store.Save(ctx, p); err != nil {
		return LoginOutcome{}, fmt.Errorf("persist principal: %w", err)
	}

	identity := Identity{Username: p.Username, Via: ViaInteractive}
	session, err := s.sessions.Issue(identity)
	if err != nil {
		return LoginOutcome{}, err
	}

	_ = audit.LogEvent(ctx, "auth.login", map[string]any{"username": username})

	return LoginOutcome{
		Principal:    p,
		CookieValue:  *p.AuthToken,
		CookieExpiry: *p.AuthTokenExpiry,
		SessionToken: session,
	}, nil
}

// Logout revokes the stored browser token. The API token deliberately
// survives: programmatic access is a separate long-lived grant.
func (s *Service) Logout(ctx context.Context, store Store, username string) error {
	p, err := store.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	p.AuthToken = nil
	p.AuthTokenExpiry = nil
	if err := store.Save(ctx, p); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "auth.logout", map[string]any{"username": username})
	return nil
}
