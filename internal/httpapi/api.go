// Package httpapi is the HTTP surface of the gateway: health and metrics
// endpoints, organism listings, interactive login, and the tenant-scoped
// assembly resources. Every tenant-scoped request resolves its organism,
// binds one database connection, runs the credential chain and releases
// the connection when the handler returns.
package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"arcturus.sanger.ac.uk/internal/auth"
	"arcturus.sanger.ac.uk/internal/binder"
	"arcturus.sanger.ac.uk/internal/config"
	"arcturus.sanger.ac.uk/internal/obs"
	"arcturus.sanger.ac.uk/internal/tenant"
)

// ReadyProbe reports whether the service's upstream (the directory) is
// reachable.
type ReadyProbe interface {
	Check(ctx context.Context) error
}

// ReadyFunc adapts a function to ReadyProbe.
type ReadyFunc func(ctx context.Context) error

func (f ReadyFunc) Check(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// ConnOpener opens the per-request tenant connection.
type ConnOpener interface {
	Open(ctx context.Context, id tenant.ID, params tenant.ConnectionParameters) (*binder.Conn, error)
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	cfg      config.Config
	resolver *tenant.Resolver
	binder   ConnOpener
	chain    *auth.Authenticator
	login    *auth.Service
	ready    ReadyProbe
	version  string

	authCookie    string
	sessionCookie string
}

// New wires the routes. version is the build version reported by the info
// endpoints.
func New(cfg config.Config, resolver *tenant.Resolver, b ConnOpener,
	chain *auth.Authenticator, login *auth.Service, ready ReadyProbe, version string) *API {

	a := &API{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		resolver: resolver,
		binder:   b,
		chain:    chain,
		login:    login,
		ready:    ready,
		version:  version,
	}
	qualifier := portQualifier(cfg.Addr)
	a.authCookie = auth.CookieName(cfg.CookieStem, qualifier)
	a.sessionCookie = auth.CookieName(cfg.CookieStem+"_SESSION", qualifier)

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	// Organism listings resolve no organism and bind no tenant database.
	a.mux.HandleFunc("GET /arcturus/{instance}", a.Organisms)
	a.mux.HandleFunc("GET /arcturus/{instance}/{subclass}", a.Organisms)

	// Login binds the tenant database (the principal table lives there)
	// but skips the credential chain.
	a.mux.HandleFunc("GET /{instance}/{organism}/login", a.bound(a.LoginPrompt))
	a.mux.HandleFunc("POST /{instance}/{organism}/login", a.bound(a.Login))
	a.mux.HandleFunc("POST /{instance}/{organism}/logout", a.authenticated(a.Logout))

	a.mux.HandleFunc("GET /{instance}/{organism}/users", a.authenticated(a.ListUsers))
	a.mux.HandleFunc("GET /{instance}/{organism}/users/{username}", a.authenticated(a.GetUser))
	a.mux.HandleFunc("POST /{instance}/{organism}/users", a.authenticated(a.CreateUser))
	a.mux.HandleFunc("PUT /{instance}/{organism}/users/{username}", a.authenticated(a.UpdateUser))
	a.mux.HandleFunc("DELETE /{instance}/{organism}/users/{username}", a.authenticated(a.DeleteUser))

	a.mux.HandleFunc("GET /{instance}/{organism}/assemblies", a.authenticated(a.ListAssemblies))
	a.mux.HandleFunc("GET /{instance}/{organism}/assemblies/{id}", a.authenticated(a.GetAssembly))
	a.mux.HandleFunc("POST /{instance}/{organism}/assemblies", a.authenticated(a.CreateAssembly))
	a.mux.HandleFunc("PUT /{instance}/{organism}/assemblies/{id}", a.authenticated(a.UpdateAssembly))
	a.mux.HandleFunc("DELETE /{instance}/{organism}/assemblies/{id}", a.authenticated(a.DeleteAssembly))

	a.mux.HandleFunc("GET /{instance}/{organism}/projects", a.authenticated(a.ListProjects))
	a.mux.HandleFunc("GET /{instance}/{organism}/projects/{id}", a.authenticated(a.GetProject))
	a.mux.HandleFunc("POST /{instance}/{organism}/projects", a.authenticated(a.CreateProject))
	a.mux.HandleFunc("PUT /{instance}/{organism}/projects/{id}", a.authenticated(a.UpdateProject))
	a.mux.HandleFunc("DELETE /{instance}/{organism}/projects/{id}", a.authenticated(a.DeleteProject))
	a.mux.HandleFunc("GET /{instance}/{organism}/projects/{id}/contigs", a.authenticated(a.ProjectContigs))
	a.mux.HandleFunc("GET /{instance}/{organism}/projects/{id}/export", a.authenticated(a.ProjectExport))

	a.mux.HandleFunc("GET /{instance}/{organism}/contigs/current", a.authenticated(a.CurrentContigs))
	a.mux.HandleFunc("GET /{instance}/{organism}/contigs/{id}", a.authenticated(a.GetContig))
	a.mux.HandleFunc("GET /{instance}/{organism}/contigs/{id}/tags", a.authenticated(a.ContigTags))

	a.mux.HandleFunc("GET /{instance}/{organism}/contig-tags", a.authenticated(a.ListContigTags))
	a.mux.HandleFunc("GET /{instance}/{organism}/contig-tags/{id}", a.authenticated(a.GetContigTag))
	a.mux.HandleFunc("POST /{instance}/{organism}/contig-tags", a.authenticated(a.CreateContigTag))
	a.mux.HandleFunc("PUT /{instance}/{organism}/contig-tags/{id}", a.authenticated(a.UpdateContigTag))
	a.mux.HandleFunc("DELETE /{instance}/{organism}/contig-tags/{id}", a.authenticated(a.DeleteContigTag))

	a.mux.HandleFunc("GET /{instance}/{organism}/tag-mappings/{id}", a.authenticated(a.GetTagMapping))
	a.mux.HandleFunc("POST /{instance}/{organism}/tag-mappings", a.authenticated(a.CreateTagMapping))
	a.mux.HandleFunc("PUT /{instance}/{organism}/tag-mappings/{id}", a.authenticated(a.UpdateTagMapping))
	a.mux.HandleFunc("DELETE /{instance}/{organism}/tag-mappings/{id}", a.authenticated(a.DeleteTagMapping))

	return a
}

// Handler assembles the middleware stack around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = RateLimit(h, a.cfg.RateBurst, a.cfg.RatePerSecond)
	h = MaxBodyBytes(h, a.cfg.MaxBodyBytes)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "arcturus-gateway",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "arcturus-gateway",
		"environment": a.cfg.Environment,
		"time":        time.Now().UTC().Format(time.RFC3339),
		"version":     a.version,
	})
}

// portQualifier derives the cookie name qualifier from the listen address,
// so gateways on different ports never clobber each other's cookies.
func portQualifier(addr string) string {
	if u, err := url.Parse("http://" + addr); err == nil && u.Port() != "" {
		return u.Port()
	}
	return "80"
}
