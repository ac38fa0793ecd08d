package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"arcturus.sanger.ac.uk/internal/directory"
)

const objectClassMarker = "javaNamingReference"

// Lookuper is the slice of the directory client the resolver needs.
type Lookuper interface {
	Lookup(ctx context.Context, baseDN, filter string) ([]directory.Entry, error)
}

// Policy is the credential downgrade policy for non-authoritative
// instances. It depends only on (instance, environment), never on organism.
type Policy struct {
	Environment       string
	ReadOnlyInstances []string
	ReadOnlyUsername  string
	ReadOnlyPassword  string
}

func (p Policy) production() bool {
	return strings.EqualFold(p.Environment, "production")
}

func (p Policy) downgrades(instance string) bool {
	if p.production() {
		return false
	}
	for _, name := range p.ReadOnlyInstances {
		if strings.EqualFold(name, instance) {
			return true
		}
	}
	return false
}

// Resolver turns tenant identifiers into connection parameters.
type Resolver struct {
	dir    Lookuper
	base   string
	policy Policy
}

// NewResolver builds a Resolver over the given directory client. base is
// the directory suffix instances live under.
func NewResolver(dir Lookuper, base string, policy Policy) *Resolver {
	return &Resolver{dir: dir, base: base, policy: policy}
}

func (r *Resolver) instanceDN(instance string, subclass string) string {
	dn := fmt.Sprintf("cn=%s,%s", ldap.EscapeDN(instance), r.base)
	if subclass != "" {
		dn = fmt.Sprintf("cn=%s,%s", ldap.EscapeDN(subclass), dn)
	}
	return dn
}

// Resolve looks the organism up under the instance sub-context and decodes
// its connection parameters, applying the read-only downgrade policy.
// Idempotent for fixed inputs and environment.
func (r *Resolver) Resolve(ctx context.Context, id ID) (ConnectionParameters, error) {
	if strings.TrimSpace(id.Instance) == "" {
		return ConnectionParameters{}, ErrUnknownInstance
	}
	if strings.TrimSpace(id.Organism) == "" {
		return ConnectionParameters{}, fmt.Errorf("%w: empty name", ErrUnknownOrganism)
	}

	filter := directory.FilterAnd(
		directory.Condition{Attribute: "objectClass", Value: objectClassMarker},
		directory.Condition{Attribute: "cn", Value: id.Organism},
	)
	entries, err := r.dir.Lookup(ctx, r.instanceDN(id.Instance, ""), filter)
	if err != nil {
		return ConnectionParameters{}, err
	}
	if len(entries) == 0 {
		return ConnectionParameters{}, fmt.Errorf("%w: %s", ErrUnknownOrganism, id)
	}

	params, err := parametersFromEntry(directory.DecodeReferenceAddress(
		entries[0].Attributes[directory.ReferenceAddressAttribute]))
	if err != nil {
		return ConnectionParameters{}, fmt.Errorf("%s: %w", id, err)
	}

	if r.policy.downgrades(id.Instance) {
		params.Username = r.policy.ReadOnlyUsername
		params.Password = r.policy.ReadOnlyPassword
	}
	return params, nil
}

// Organisms enumerates the organisms under an instance (optionally one of
// its subclass sub-contexts) without resolving any of them.
func (r *Resolver) Organisms(ctx context.Context, instance, subclass string) ([]Organism, error) {
	if strings.TrimSpace(instance) == "" {
		return nil, ErrUnknownInstance
	}

	filter := directory.FilterAnd(
		directory.Condition{Attribute: "objectClass", Value: objectClassMarker},
	)
	entries, err := r.dir.Lookup(ctx, r.instanceDN(instance, subclass), filter)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstance, instance)
	}

	organisms := make([]Organism, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		organisms = append(organisms, Organism{Name: e.Name, Description: e.Description})
	}
	return organisms, nil
}
