package auth

import (
	"context"
	"errors"
	"time"
)

// Credentials are the raw credential carriers extracted from one request.
type Credentials struct {
	SessionToken string // signed session cookie value
	AuthCookie   string // persistent auth-token cookie value
	APIKey       string // api_key query/form parameter
	RequestURI   string // original request, replayed after login
}

// Result is the terminal outcome of the chain. Either Identity is set, or
// LoginRequired is true; exhaustion of the chain is not a hard failure.
type Result struct {
	Identity      Identity
	LoginRequired bool
	ReturnTo      string

	// SetSession carries a fresh session token when a persistent
	// credential matched and the browser session should be
	// re-established.
	SetSession string
}

// Config tunes chain behavior.
type Config struct {
	// AllowExpiredAPIToken restores the legacy behavior of matching API
	// tokens structurally without consulting their expiry.
	AllowExpiredAPIToken bool
}

// Authenticator runs the ordered credential chain: session, cookie, API
// key, interactive. Steps are strictly ordered and short-circuit on first
// success; a miss falls through, it never raises.
type Authenticator struct {
	sessions *Sessions
	cfg      Config
	now      func() time.Time
}

// NewAuthenticator builds the chain over the given session verifier.
func NewAuthenticator(sessions *Sessions, cfg Config) *Authenticator {
	return &Authenticator{sessions: sessions, cfg: cfg, now: time.Now}
}

// Authenticate establishes the request identity. store is the principal
// store bound to this request's tenant connection. Only store failures
// other than a miss surface as errors.
func (a *Authenticator) Authenticate(ctx context.Context, store Store, creds Credentials) (Result, error) {
	if identity, ok := a.trySession(ctx, creds); ok {
		return Result{Identity: identity}, nil
	}

	identity, matched, err := a.tryCookie(ctx, store, creds)
	if err != nil {
		return Result{}, err
	}
	if matched {
		session, err := a.sessions.Issue(identity)
		if err != nil {
			return Result{}, err
		}
		return Result{Identity: identity, SetSession: session}, nil
	}

	identity, matched, err = a.tryAPIKey(ctx, store, creds)
	if err != nil {
		return Result{}, err
	}
	if matched {
		return Result{Identity: identity}, nil
	}

	return Result{LoginRequired: true, ReturnTo: creds.RequestURI}, nil
}

func (a *Authenticator) trySession(ctx context.Context, creds Credentials) (Identity, bool) {
	if identity, ok := IdentityFromContext(ctx); ok {
		return identity, true
	}
	if creds.SessionToken == "" {
		return Identity{}, false
	}
	identity, err := a.sessions.Verify(creds.SessionToken)
	if err != nil {
		return Identity{}, false
	}
	return identity, true
}

func (a *Authenticator) tryCookie(ctx context.Context, store Store, creds Credentials) (Identity, bool, error) {
	if creds.AuthCookie == "" {
		return Identity{}, false, nil
	}
	p, err := store.FindByAuthToken(ctx, creds.AuthCookie)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, err
	}
	if !p.HasAuthToken(a.now()) {
		return Identity{}, false, nil
	}
	return Identity{Username: p.Username, Via: ViaCookie}, true, nil
}

func (a *Authenticator) tryAPIKey(ctx context.Context, store Store, creds Credentials) (Identity, bool, error) {
	if creds.APIKey == "" {
		return Identity{}, false, nil
	}
	p, err := store.FindByAPIToken(ctx, creds.APIKey)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, err
	}
	if !a.cfg.AllowExpiredAPIToken && !p.HasAPIToken(a.now()) {
		return Identity{}, false, nil
	}
	return Identity{Username: p.Username, Via: ViaAPIKey}, true, nil
}
