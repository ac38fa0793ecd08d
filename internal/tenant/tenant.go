// Package tenant resolves (instance, organism) pairs into concrete database
// connection parameters via the directory service.
package tenant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownInstance indicates the instance path segment does not name
	// a directory sub-context.
	ErrUnknownInstance = errors.New("tenant: unknown instance")

	// ErrUnknownOrganism indicates the lookup matched no entry. Callers
	// must keep it distinguishable from directory.ErrUnavailable: the
	// former is a not-found condition, the latter service failure.
	ErrUnknownOrganism = errors.New("tenant: unknown organism")

	// ErrIncompleteEntry indicates a matched entry did not carry all five
	// required connection parameters.
	ErrIncompleteEntry = errors.New("tenant: incomplete directory entry")
)

// ID identifies one logical database. Immutable per request, used only as a
// lookup key.
type ID struct {
	Instance string
	Organism string
}

func (id ID) String() string {
	return id.Instance + "/" + id.Organism
}

// ConnectionParameters is a fully resolved database endpoint. Created fresh
// per request and discarded when the request's connection closes; never
// cached, since credentials may differ per organism.
type ConnectionParameters struct {
	Adapter  string
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// Organism is one entry in an instance listing.
type Organism struct {
	Name        string
	Description string
}

const defaultAdapter = "mysql"

// connection parameter aliases as they appear in directory entries
var (
	hostKeys     = []string{"serverName", "host"}
	portKeys     = []string{"portNumber", "port"}
	databaseKeys = []string{"databaseName"}
	userKeys     = []string{"user", "username"}
	passwordKeys = []string{"password"}
)

func pick(params map[string]string, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := params[k]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// parametersFromEntry decodes the encoded address attribute into
// ConnectionParameters, requiring all five of host, port, database,
// username and password to resolve from the same entry.
func parametersFromEntry(params map[string]string) (ConnectionParameters, error) {
	var cp ConnectionParameters
	var missing []string

	if v, ok := pick(params, hostKeys); ok {
		cp.Host = v
	} else {
		missing = append(missing, "host")
	}
	if v, ok := pick(params, portKeys); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || port <= 0 {
			return ConnectionParameters{}, fmt.Errorf("%w: bad port %q", ErrIncompleteEntry, v)
		}
		cp.Port = port
	} else {
		missing = append(missing, "port")
	}
	if v, ok := pick(params, databaseKeys); ok {
		cp.Database = v
	} else {
		missing = append(missing, "databaseName")
	}
	if v, ok := pick(params, userKeys); ok {
		cp.Username = v
	} else {
		missing = append(missing, "user")
	}
	if v, ok := pick(params, passwordKeys); ok {
		cp.Password = v
	} else {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return ConnectionParameters{}, fmt.Errorf("%w: missing %s", ErrIncompleteEntry, strings.Join(missing, ", "))
	}

	cp.Adapter = defaultAdapter
	if v, ok := params["adapter"]; ok && v != "" {
		cp.Adapter = strings.ToLower(v)
	}
	return cp, nil
}
