package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"arcturus.sanger.ac.uk/internal/auth"
	"arcturus.sanger.ac.uk/internal/binder"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ReturnTo string `json:"return_to,omitempty"`
}

// LoginPrompt tells an unauthenticated client where to post credentials.
func (a *API) LoginPrompt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"login_required": true,
		"return_to":      r.URL.Query().Get("return_to"),
	})
}

// Login verifies credentials against the directory, establishes the
// principal's tokens in the tenant database and sets both cookies.
// Credentials arrive as JSON or a classic login form.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSONRequest(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, r, http.StatusBadRequest, "malformed form")
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		req.ReturnTo = r.PostFormValue("return_to")
	}

	conn, err := binder.FromContext(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	store := auth.NewSQLStore(conn.DB())

	out, err := a.login.Login(r.Context(), store, req.Username, req.Password)
	if err != nil {
		// Browser form logins bounce back to the prompt on a rejected
		// bind instead of receiving a bare JSON error.
		if errors.Is(err, auth.ErrBadCredentials) && !wantsJSON(r) {
			prompt := url.URL{
				Path:     r.URL.Path,
				RawQuery: url.Values{"denied": {"1"}, "return_to": {req.ReturnTo}}.Encode(),
			}
			http.Redirect(w, r, prompt.String(), http.StatusFound)
			return
		}
		writeDomainError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.authCookie,
		Value:    out.CookieValue,
		Path:     "/",
		Expires:  out.CookieExpiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.cfg.Production(),
	})
	a.setSessionCookie(w, out.SessionToken)

	if req.ReturnTo != "" && !wantsJSON(r) {
		http.Redirect(w, r, req.ReturnTo, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":         out.Principal.Username,
		"role":             out.Principal.Role,
		"api_token":        out.Principal.APIToken,
		"api_token_expiry": out.Principal.APITokenExpiry,
	})
}

// Logout revokes the browser token and clears both cookies. The API token
// survives.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	conn, err := binder.FromContext(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	store := auth.NewSQLStore(conn.DB())

	if err := a.login.Logout(r.Context(), store, identity.Username); err != nil {
		writeDomainError(w, r, err)
		return
	}

	expire := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{Name: a.authCookie, Value: "", Path: "/", Expires: expire, MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: a.sessionCookie, Value: "", Path: "/", Expires: expire, MaxAge: -1})

	writeJSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

func isJSONRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "application/json" || ct == "application/json; charset=utf-8"
}
