package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"arcturus.sanger.ac.uk/internal/auth"
	"arcturus.sanger.ac.uk/internal/binder"
	"arcturus.sanger.ac.uk/internal/config"
	"arcturus.sanger.ac.uk/internal/directory"
	"arcturus.sanger.ac.uk/internal/tenant"
)

type fakeLookuper struct {
	entries map[string][]directory.Entry
	err     error
}

func (f *fakeLookuper) Lookup(_ context.Context, baseDN, _ string) ([]directory.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[baseDN], nil
}

type fakeOpener struct {
	db  *sqlmockConn
	err error
}

type sqlmockConn struct {
	conn *binder.Conn
	mock sqlmock.Sqlmock
}

func (f *fakeOpener) Open(_ context.Context, id tenant.ID, _ tenant.ConnectionParameters) (*binder.Conn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.db.conn, nil
}

type fakeDirBinder struct {
	accept map[string]string
}

func (f *fakeDirBinder) BindAs(_ context.Context, username, password string) error {
	if f.accept[username] == password && password != "" {
		return nil
	}
	return directory.ErrBindRejected
}

func referenceEntry(organism string) directory.Entry {
	return directory.Entry{
		DN:   "cn=" + organism + ",cn=test,cn=jdbc,o=arcturus",
		Name: organism,
		Attributes: map[string][]string{
			directory.ReferenceAddressAttribute: {
				"#0#serverName#db1.internal",
				"#1#portNumber#3306",
				"#2#databaseName#arcturus_" + organism,
				"#3#user#arcturus",
				"#4#password#secret",
			},
		},
	}
}

func newMockConn(t *testing.T) *sqlmockConn {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &sqlmockConn{
		conn: binder.NewConn(db, tenant.ID{Instance: "test", Organism: "testdb"}),
		mock: mock,
	}
}

func newTestAPI(t *testing.T, lookuper tenant.Lookuper, opener ConnOpener) (*API, *auth.Sessions) {
	t.Helper()
	cfg := config.Config{
		Addr:          ":8080",
		Environment:   "test",
		CookieStem:    "ARCTURUS_AUTH",
		SessionTTL:    time.Hour,
		MaxBodyBytes:  1 << 20,
		RateBurst:     100,
		RatePerSecond: 100,
	}
	resolver := tenant.NewResolver(lookuper, "cn=jdbc,o=arcturus", tenant.Policy{Environment: cfg.Environment})
	sessions := auth.NewSessions("test-secret", cfg.SessionTTL)
	chain := auth.NewAuthenticator(sessions, auth.Config{})
	login := auth.NewService(&fakeDirBinder{accept: map[string]string{"alice": "pw"}}, sessions)
	return New(cfg, resolver, opener, chain, login, ReadyFunc(nil), "test"), sessions
}

func TestHealthz(t *testing.T) {
	api, _ := newTestAPI(t, &fakeLookuper{}, &fakeOpener{})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id header missing")
	}
}

func TestOrganismListing(t *testing.T) {
	lookuper := &fakeLookuper{entries: map[string][]directory.Entry{
		"cn=test,cn=jdbc,o=arcturus": {
			referenceEntry("testdb"),
			referenceEntry("otherdb"),
		},
	}}
	api, _ := newTestAPI(t, lookuper, &fakeOpener{})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/arcturus/test", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "otherdb") {
		t.Fatalf("organism missing from listing: %s", rec.Body.String())
	}
}

func TestUnknownOrganismIs404(t *testing.T) {
	lookuper := &fakeLookuper{entries: map[string][]directory.Entry{}}
	api, _ := newTestAPI(t, lookuper, &fakeOpener{})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/ghost/users", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown organism must 404, got %d", rec.Code)
	}
}

func TestDirectoryOutageIs503(t *testing.T) {
	lookuper := &fakeLookuper{err: directory.ErrUnavailable}
	api, _ := newTestAPI(t, lookuper, &fakeOpener{})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/testdb/users", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("directory outage must 503, got %d", rec.Code)
	}
}

func TestBindFailureIs503(t *testing.T) {
	lookuper := &fakeLookuper{entries: map[string][]directory.Entry{
		"cn=test,cn=jdbc,o=arcturus": {referenceEntry("testdb")},
	}}
	api, _ := newTestAPI(t, lookuper, &fakeOpener{err: binder.ErrConnectionFailed})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/testdb/users", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("bind failure must 503, got %d", rec.Code)
	}
}

func tenantFixture(t *testing.T) (*API, *auth.Sessions, *sqlmockConn) {
	t.Helper()
	lookuper := &fakeLookuper{entries: map[string][]directory.Entry{
		"cn=test,cn=jdbc,o=arcturus": {referenceEntry("testdb")},
	}}
	mc := newMockConn(t)
	api, sessions := newTestAPI(t, lookuper, &fakeOpener{db: mc})
	return api, sessions, mc
}

func TestChainExhaustionRedirectsBrowserToLogin(t *testing.T) {
	api, _, _ := tenantFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/test/testdb/projects", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	if loc.Path != "/test/testdb/login" {
		t.Fatalf("redirect must target the tenant login, got %s", loc.Path)
	}
	if loc.Query().Get("return_to") != "/test/testdb/projects" {
		t.Fatalf("original path not preserved: %s", loc.RawQuery)
	}
}

func TestChainExhaustionIs401ForAPIClients(t *testing.T) {
	api, _, _ := tenantFixture(t)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/testdb/projects", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionCookieAuthenticates(t *testing.T) {
	api, sessions, mc := tenantFixture(t)
	token, err := sessions.Issue(auth.Identity{Username: "alice", Via: auth.ViaInteractive})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	mc.mock.ExpectQuery("select username, role from users").
		WillReturnRows(sqlmock.NewRows([]string{"username", "role"}).AddRow("alice", "finisher"))

	req := httptest.NewRequest(http.MethodGet, "/test/testdb/users", nil)
	req.AddCookie(&http.Cookie{Name: "ARCTURUS_AUTH_SESSION_8080", Value: token})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "alice") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestAPIKeyAuthenticates(t *testing.T) {
	api, _, mc := tenantFixture(t)
	expiry := time.Now().Add(time.Hour)
	mc.mock.ExpectQuery("select .* from users where api_token").
		WithArgs("api-token-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"username", "role", "auth_token", "auth_token_expiry", "api_token", "api_token_expiry",
		}).AddRow("alice", nil, nil, nil, "api-token-1", expiry))
	mc.mock.ExpectQuery("from CURRENTCONTIGS").
		WillReturnRows(sqlmock.NewRows([]string{
			"contig_id", "gap4name", "length", "nreads", "created", "updated", "project_id",
		}).AddRow(11, "ctg0001", 84211, 1203, time.Now(), time.Now(), 7))

	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/test/testdb/contigs/current?api_key=api-token-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestLoginSetsCookiesAndPersistsTokens(t *testing.T) {
	api, _, mc := tenantFixture(t)

	principalCols := []string{"username", "role", "auth_token", "auth_token_expiry", "api_token", "api_token_expiry"}
	// CreateOrGet: miss, insert, re-read.
	mc.mock.ExpectQuery("select .* from users where username").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(principalCols))
	mc.mock.ExpectExec("insert into users").
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mc.mock.ExpectQuery("select .* from users where username").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(principalCols).AddRow("alice", nil, nil, nil, nil, nil))
	mc.mock.ExpectExec("update users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	form := url.Values{"username": {"alice"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/test/testdb/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}

	var sawAuth, sawSession bool
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case "ARCTURUS_AUTH_8080":
			sawAuth = c.Value != ""
		case "ARCTURUS_AUTH_SESSION_8080":
			sawSession = c.Value != ""
		}
	}
	if !sawAuth || !sawSession {
		t.Fatalf("login must set both cookies, got %v", rec.Result().Cookies())
	}
	if err := mc.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginBadCredentialsIs401(t *testing.T) {
	api, _, _ := tenantFixture(t)
	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/test/testdb/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials must 401, got %d", rec.Code)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	api, sessions, mc := tenantFixture(t)
	token, err := sessions.Issue(auth.Identity{Username: "alice", Via: auth.ViaInteractive})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	now := time.Now()
	mc.mock.ExpectQuery("select .* from users where username").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{
			"username", "role", "auth_token", "auth_token_expiry", "api_token", "api_token_expiry",
		}).AddRow("alice", nil, "auth-1", now.Add(time.Hour), "api-1", now.Add(time.Hour)))
	mc.mock.ExpectExec("update users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPost, "/test/testdb/logout", nil)
	req.AddCookie(&http.Cookie{Name: "ARCTURUS_AUTH_SESSION_8080", Value: token})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "ARCTURUS_AUTH_8080" && c.MaxAge != -1 {
			t.Fatal("auth cookie must be expired on logout")
		}
	}
}

func TestMethodNotAllowedOnResources(t *testing.T) {
	api, _, _ := tenantFixture(t)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/arcturus/test", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
