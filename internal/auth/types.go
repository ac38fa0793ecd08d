package auth

import "time"

// Principal is a persisted user identity carrying the rotating browser
// token and the long-lived API token. Rows are created on first successful
// interactive login and never deleted by normal operation.
type Principal struct {
	Username        string
	Role            *string
	AuthToken       *string
	AuthTokenExpiry *time.Time
	APIToken        *string
	APITokenExpiry  *time.Time
}

// Roles recognized on a Principal. An absent role is valid: a freshly
// provisioned user has none.
var Roles = []string{"annotator", "finisher", "coordinator", "superuser", "assembler"}

// ValidRole reports whether role is absent or in the recognized set.
func ValidRole(role *string) bool {
	if role == nil || *role == "" {
		return true
	}
	for _, r := range Roles {
		if r == *role {
			return true
		}
	}
	return false
}

// Via records which credential source established the request identity.
type Via string

const (
	ViaSession     Via = "session"
	ViaCookie      Via = "cookie"
	ViaAPIKey      Via = "apiKey"
	ViaInteractive Via = "interactive"
)

// Identity is the request-scoped outcome of authentication. It exists only
// for the duration of one request and is never persisted.
type Identity struct {
	Username string
	Via      Via
}

// HasAuthToken reports whether the principal currently holds a live
// browser token at the given instant.
func (p *Principal) HasAuthToken(now time.Time) bool {
	return p.AuthToken != nil && *p.AuthToken != "" &&
		p.AuthTokenExpiry != nil && now.Before(*p.AuthTokenExpiry)
}

// HasAPIToken reports whether the principal holds an unexpired API token.
func (p *Principal) HasAPIToken(now time.Time) bool {
	return p.APIToken != nil && *p.APIToken != "" &&
		p.APITokenExpiry != nil && now.Before(*p.APITokenExpiry)
}
