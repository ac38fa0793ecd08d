// Package directory wraps the LDAP service that maps tenants to database
// endpoints and verifies interactive login credentials.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"arcturus.sanger.ac.uk/internal/obs"
)

var (
	// ErrUnavailable indicates the directory service could not be reached
	// or timed out. It blocks all downstream tenant resolution and must
	// propagate to the request boundary.
	ErrUnavailable = errors.New("directory: service unavailable")

	// ErrBindRejected indicates the directory refused a bind with the
	// supplied credentials.
	ErrBindRejected = errors.New("directory: bind rejected")
)

// Entry is one directory search result. It is consumed once and never
// persisted.
type Entry struct {
	DN          string
	Name        string
	Description string
	Attributes  map[string][]string
}

// Config holds the process-wide directory connection settings. It is
// read-only after construction and safe to share across requests.
type Config struct {
	URL          string
	BindDN       string
	BindPassword string
	PeopleBase   string
	Timeout      time.Duration
}

// Client issues lookups and bind checks against one directory service.
type Client struct {
	cfg Config
}

// NewClient builds a Client. A zero timeout falls back to 10s so a dead
// directory can never hang a serving worker indefinitely.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg}
}

// Condition is one attribute equality predicate.
type Condition struct {
	Attribute string
	Value     string
}

// FilterAnd renders a conjunction of equality predicates as an LDAP filter,
// escaping values.
func FilterAnd(conds ...Condition) string {
	if len(conds) == 1 {
		return fmt.Sprintf("(%s=%s)", conds[0].Attribute, ldap.EscapeFilter(conds[0].Value))
	}
	var b strings.Builder
	b.WriteString("(&")
	for _, c := range conds {
		fmt.Fprintf(&b, "(%s=%s)", c.Attribute, ldap.EscapeFilter(c.Value))
	}
	b.WriteString(")")
	return b.String()
}

// Lookup searches the subtree under baseDN for entries matching filter.
// No match yields an empty slice and a nil error; transport failures yield
// ErrUnavailable.
func (c *Client) Lookup(ctx context.Context, baseDN, filter string) ([]Entry, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		obs.ObserveDirectoryLookup("unavailable")
		return nil, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.DerefAlways,
		0, int(c.cfg.Timeout.Seconds()), false,
		filter,
		nil,
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			obs.ObserveDirectoryLookup("miss")
			return nil, nil
		}
		obs.ObserveDirectoryLookup("unavailable")
		return nil, fmt.Errorf("%w: search %s: %v", ErrUnavailable, baseDN, err)
	}

	entries := make([]Entry, 0, len(res.Entries))
	for _, e := range res.Entries {
		entry := Entry{
			DN:         e.DN,
			Attributes: make(map[string][]string, len(e.Attributes)),
		}
		for _, attr := range e.Attributes {
			entry.Attributes[attr.Name] = attr.Values
		}
		entry.Name = e.GetAttributeValue("cn")
		entry.Description = e.GetAttributeValue("description")
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		obs.ObserveDirectoryLookup("miss")
	} else {
		obs.ObserveDirectoryLookup("ok")
	}
	return entries, nil
}

// BindAs attempts a directory bind as the named user. A successful bind
// means the credentials are valid.
func (c *Client) BindAs(ctx context.Context, username, password string) error {
	if password == "" {
		// An empty password would be an anonymous bind, which always
		// succeeds. Never treat that as a credential match.
		return ErrBindRejected
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	dn := c.UserDN(username)
	if err := conn.Bind(dn, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return ErrBindRejected
		}
		return fmt.Errorf("%w: bind %s: %v", ErrUnavailable, dn, err)
	}
	return nil
}

// Ping checks directory reachability for the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// UserDN maps a username onto its entry under the people base.
func (c *Client) UserDN(username string) string {
	return fmt.Sprintf("uid=%s,%s", ldap.EscapeDN(username), c.cfg.PeopleBase)
}

func (c *Client) dial(ctx context.Context) (*ldap.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	conn, err := ldap.DialURL(c.cfg.URL, ldap.DialWithDialer(&net.Dialer{Timeout: c.cfg.Timeout}))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, c.cfg.URL, err)
	}
	conn.SetTimeout(c.cfg.Timeout)

	if c.cfg.BindDN != "" {
		if err := conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: service bind: %v", ErrUnavailable, err)
		}
	}
	return conn, nil
}
