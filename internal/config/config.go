// Package config collects the environment variables shared by the service
// binaries into one place.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "ARCTURUS_"

// Config carries process-wide settings. It is read once at startup and never
// mutated afterwards.
type Config struct {
	Addr        string
	Environment string

	// Directory service.
	LDAPURL      string
	LDAPBase     string
	LDAPBindDN   string
	LDAPBindPass string
	LDAPPeople   string
	LDAPTimeout  time.Duration

	// Non-authoritative instances are downgraded to this read-only
	// credential pair outside production.
	ReadOnlyInstances []string
	ReadOnlyUser      string
	ReadOnlyPassword  string

	// Authentication.
	SessionSecret        string
	CookieStem           string
	SessionTTL           time.Duration
	AuthTokenTTL         time.Duration
	APITokenTTL          time.Duration
	AllowExpiredAPIToken bool

	// HTTP limits.
	MaxBodyBytes  int64
	RateBurst     int
	RatePerSecond int
}

// FromEnv builds a Config from ARCTURUS_* environment variables, applying
// defaults where a variable is unset.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:              getenv("ADDR", ":8080"),
		Environment:       getenv("ENV", "development"),
		LDAPURL:           getenv("LDAP_URL", "ldap://localhost:389"),
		LDAPBase:          getenv("LDAP_BASE", "cn=jdbc,o=arcturus"),
		LDAPBindDN:        getenv("LDAP_BIND_DN", ""),
		LDAPBindPass:      getenv("LDAP_BIND_PASSWORD", ""),
		LDAPPeople:        getenv("LDAP_PEOPLE_BASE", "ou=people,o=arcturus"),
		LDAPTimeout:       getduration("LDAP_TIMEOUT", 10*time.Second),
		ReadOnlyInstances: getlist("READONLY_INSTANCES", []string{"pathogen"}),
		ReadOnlyUser:      getenv("READONLY_USER", "arcturus_ro"),
		ReadOnlyPassword:  getenv("READONLY_PASSWORD", ""),
		SessionSecret:     getenv("SESSION_SECRET", ""),
		CookieStem:        getenv("COOKIE_STEM", "ARCTURUS_AUTH"),
		SessionTTL:        getduration("SESSION_TTL", 8*time.Hour),
		AuthTokenTTL:      getduration("AUTH_TOKEN_TTL", 48*time.Hour),
		APITokenTTL:       getduration("API_TOKEN_TTL", 2*365*24*time.Hour),
		MaxBodyBytes:      getint64("MAX_BODY_BYTES", 1<<20),
		RateBurst:         getint("RATE_BURST", 20),
		RatePerSecond:     getint("RATE_PER_SECOND", 10),
	}
	cfg.AllowExpiredAPIToken = getbool("ALLOW_EXPIRED_API_TOKEN", false)

	if cfg.SessionSecret == "" {
		return Config{}, errors.New("config: " + envPrefix + "SESSION_SECRET is required")
	}
	return cfg, nil
}

// Production reports whether the runtime environment is production.
func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ReadOnlyInstance reports whether the instance is in the configured
// non-authoritative set.
func (c Config) ReadOnlyInstance(instance string) bool {
	for _, name := range c.ReadOnlyInstances {
		if strings.EqualFold(name, instance) {
			return true
		}
	}
	return false
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return def
}

func getlist(key string, def []string) []string {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getduration(key string, def time.Duration) time.Duration {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getint(key string, def int) int {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getint64(key string, def int64) int64 {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getbool(key string, def bool) bool {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// String renders the config for startup logging with secrets redacted.
func (c Config) String() string {
	return fmt.Sprintf("addr=%s env=%s ldap=%s base=%q readonly=%v",
		c.Addr, c.Environment, c.LDAPURL, c.LDAPBase, c.ReadOnlyInstances)
}
