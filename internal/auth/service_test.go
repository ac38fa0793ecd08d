package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"arcturus.sanger.ac.uk/internal/directory"
)

type fakeBinder struct {
	passwords map[string]string
	down      bool
}

func (f *fakeBinder) BindAs(_ context.Context, username, password string) error {
	if f.down {
		return directory.ErrUnavailable
	}
	if f.passwords[username] == password && password != "" {
		return nil
	}
	return directory.ErrBindRejected
}

func newTestService(binder *fakeBinder, opts ...ServiceOption) *Service {
	return NewService(binder, NewSessions("test-secret", time.Hour), opts...)
}

func TestLoginRoundTrip(t *testing.T) {
	binder := &fakeBinder{passwords: map[string]string{"alice": "pw"}}
	store := newFakeStore()
	svc := newTestService(binder)

	out, err := svc.Login(context.Background(), store, "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if out.Principal.AuthToken == nil || out.Principal.APIToken == nil {
		t.Fatalf("tokens not established: %+v", out.Principal)
	}
	if out.CookieValue != *out.Principal.AuthToken {
		t.Fatal("cookie value must be the stored auth token")
	}
	if !out.CookieExpiry.Equal(*out.Principal.AuthTokenExpiry) {
		t.Fatal("cookie expiry must match the stored token expiry")
	}

	// The cookie value just set must find the principal again.
	found, err := store.FindByAuthToken(context.Background(), out.CookieValue)
	if err != nil {
		t.Fatalf("FindByAuthToken: %v", err)
	}
	if found.Username != "alice" {
		t.Fatalf("unexpected principal %+v", found)
	}
}

func TestLoginTokenLifetimes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	binder := &fakeBinder{passwords: map[string]string{"alice": "pw"}}
	store := newFakeStore()
	svc := newTestService(binder, WithClock(func() time.Time { return now }))

	out, err := svc.Login(context.Background(), store, "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := *out.Principal.AuthTokenExpiry; !got.Equal(now.Add(48 * time.Hour)) {
		t.Fatalf("auth token expiry %v, want 2 days out", got)
	}
	if got := *out.Principal.APITokenExpiry; !got.Equal(now.Add(2 * 365 * 24 * time.Hour)) {
		t.Fatalf("api token expiry %v, want ~2 years out", got)
	}
}

func TestLoginKeepsStableAPIToken(t *testing.T) {
	binder := &fakeBinder{passwords: map[string]string{"alice": "pw"}}
	store := newFakeStore()
	svc := newTestService(binder)

	first, err := svc.Login(context.Background(), store, "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	second, err := svc.Login(context.Background(), store, "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if *first.Principal.APIToken != *second.Principal.APIToken {
		t.Fatal("api token must stay stable across logins")
	}
}

func TestLoginRotatesExpiredAuthToken(t *testing.T) {
	binder := &fakeBinder{passwords: map[string]string{"alice": "pw"}}
	store := newFakeStore()
	stale := testPrincipal("alice", time.Now())
	stale.AuthTokenExpiry = timeptr(time.Now().Add(-time.Hour))
	store.add(stale)

	svc := newTestService(binder)
	out, err := svc.Login(context.Background(), store, "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if *out.Principal.AuthToken == "auth-alice" {
		t.Fatal("expired auth token must be rotated on login")
	}
}

func TestLoginBadCredentials(t *testing.T) {
	binder := &fakeBinder{passwords: map[string]string{"alice": "pw"}}
	store := newFakeStore()
	svc := newTestService(binder)

	_, err := svc.Login(context.Background(), store, "alice", "wrong")
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("no state may be persisted on a rejected login")
	}
}

func TestLoginDirectoryDownPropagates(t *testing.T) {
	binder := &fakeBinder{down: true}
	svc := newTestService(binder)

	_, err := svc.Login(context.Background(), newFakeStore(), "alice", "pw")
	if !errors.Is(err, directory.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestLogoutRevokesAuthTokenOnly(t *testing.T) {
	store := newFakeStore()
	store.add(testPrincipal("alice", time.Now()))
	svc := newTestService(&fakeBinder{})

	if err := svc.Logout(context.Background(), store, "alice"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	p := store.byUsername["alice"]
	if p.AuthToken != nil || p.AuthTokenExpiry != nil {
		t.Fatalf("auth token must be revoked: %+v", p)
	}
	if p.APIToken == nil {
		t.Fatal("api token must survive logout")
	}
}

func TestLogoutUnknownUserIsNoop(t *testing.T) {
	svc := newTestService(&fakeBinder{})
	if err := svc.Logout(context.Background(), newFakeStore(), "ghost"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
}

func TestNewTokenUniqueness(t *testing.T) {
	now := time.Now()
	a := NewToken(now)
	b := NewToken(now)
	if a == b {
		t.Fatal("tokens from the same instant must differ")
	}
	if len(a) != 64 {
		t.Fatalf("unexpected token length %d", len(a))
	}
}
