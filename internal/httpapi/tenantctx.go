package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"arcturus.sanger.ac.uk/internal/audit"
	"arcturus.sanger.ac.uk/internal/auth"
	"arcturus.sanger.ac.uk/internal/binder"
	"arcturus.sanger.ac.uk/internal/tenant"
)

// bound resolves the tenant from the path, opens the request's database
// connection and releases it when the handler returns. The connection is
// reachable via binder.FromContext for the rest of the request.
func (a *API) bound(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := tenant.ID{
			Instance: r.PathValue("instance"),
			Organism: r.PathValue("organism"),
		}
		params, err := a.resolver.Resolve(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		conn, err := a.binder.Open(r.Context(), id, params)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		defer func() { _ = conn.Close() }()

		ctx := binder.WithConn(r.Context(), conn)
		ctx = audit.WithTenant(ctx, id.String())
		next(w, r.WithContext(ctx))
	}
}

// authenticated runs the credential chain after the tenant bind. The chain
// never fails on a miss: exhaustion redirects to the tenant's login.
func (a *API) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return a.bound(func(w http.ResponseWriter, r *http.Request) {
		conn, err := binder.FromContext(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		store := auth.NewSQLStore(conn.DB())

		res, err := a.chain.Authenticate(r.Context(), store, auth.Credentials{
			SessionToken: cookieValue(r, a.sessionCookie),
			AuthCookie:   cookieValue(r, a.authCookie),
			APIKey:       apiKey(r),
			RequestURI:   r.URL.RequestURI(),
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if res.LoginRequired {
			a.redirectToLogin(w, r, res.ReturnTo)
			return
		}
		if res.SetSession != "" {
			a.setSessionCookie(w, res.SetSession)
		}
		if res.Identity.Via == auth.ViaAPIKey {
			_ = audit.LogEvent(r.Context(), "auth.api_key.used",
				map[string]any{"username": res.Identity.Username})
		}

		ctx := auth.ContextWithIdentity(r.Context(), res.Identity)
		ctx = audit.WithUser(ctx, res.Identity.Username)
		next(w, r.WithContext(ctx))
	})
}

func (a *API) redirectToLogin(w http.ResponseWriter, r *http.Request, returnTo string) {
	login := "/" + r.PathValue("instance") + "/" + r.PathValue("organism") + "/login"
	if returnTo != "" {
		login += "?return_to=" + url.QueryEscape(returnTo)
	}
	if wantsJSON(r) {
		w.Header().Set("Location", login)
		writeError(w, r, http.StatusUnauthorized, "login required")
		return
	}
	http.Redirect(w, r, login, http.StatusFound)
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.cfg.Production(),
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// apiKey reads the api_key credential from the query string or an
// X-Api-Key header.
func apiKey(r *http.Request) string {
	if k := r.URL.Query().Get("api_key"); k != "" {
		return k
	}
	return r.Header.Get("X-Api-Key")
}

// wantsJSON treats anything that does not explicitly prefer HTML as an API
// client: curl and the pipeline tools send no Accept header at all.
func wantsJSON(r *http.Request) bool {
	return !strings.Contains(r.Header.Get("Accept"), "text/html")
}
