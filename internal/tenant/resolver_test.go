package tenant

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"arcturus.sanger.ac.uk/internal/directory"
)

type fakeDirectory struct {
	entries map[string][]directory.Entry // keyed by baseDN
	filters []string
	err     error
}

func (f *fakeDirectory) Lookup(_ context.Context, baseDN, filter string) ([]directory.Entry, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[baseDN], nil
}

func testEntry(name string, lines ...string) directory.Entry {
	return directory.Entry{
		Name:        name,
		Description: name + " assembly database",
		Attributes: map[string][]string{
			directory.ReferenceAddressAttribute: lines,
		},
	}
}

func fullEntry(name string) directory.Entry {
	return testEntry(name,
		"#0#serverName#db1",
		"#1#portNumber#3306",
		"#2#databaseName#arcturus_test",
		"#3#user#ro",
		"#4#password#secret",
	)
}

func TestResolveDecodesEntry(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]directory.Entry{
		"cn=test,cn=jdbc": {fullEntry("arcturus")},
	}}
	r := NewResolver(dir, "cn=jdbc", Policy{Environment: "production"})

	got, err := r.Resolve(context.Background(), ID{Instance: "test", Organism: "arcturus"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := ConnectionParameters{
		Adapter:  "mysql",
		Host:     "db1",
		Port:     3306,
		Database: "arcturus_test",
		Username: "ro",
		Password: "secret",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Resolve=%+v, want %+v", got, want)
	}

	wantFilter := "(&(objectClass=javaNamingReference)(cn=arcturus))"
	if len(dir.filters) != 1 || dir.filters[0] != wantFilter {
		t.Fatalf("unexpected filter: %v", dir.filters)
	}
}

func TestResolveUnknownOrganism(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]directory.Entry{}}
	r := NewResolver(dir, "cn=jdbc", Policy{})

	_, err := r.Resolve(context.Background(), ID{Instance: "test", Organism: "nosuch"})
	if !errors.Is(err, ErrUnknownOrganism) {
		t.Fatalf("expected ErrUnknownOrganism, got %v", err)
	}
	if errors.Is(err, directory.ErrUnavailable) {
		t.Fatalf("not-found must stay distinct from service failure")
	}
}

func TestResolvePropagatesDirectoryFailure(t *testing.T) {
	dir := &fakeDirectory{err: directory.ErrUnavailable}
	r := NewResolver(dir, "cn=jdbc", Policy{})

	_, err := r.Resolve(context.Background(), ID{Instance: "test", Organism: "arcturus"})
	if !errors.Is(err, directory.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable to propagate, got %v", err)
	}
}

func TestResolveIncompleteEntry(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]directory.Entry{
		"cn=test,cn=jdbc": {testEntry("arcturus",
			"#0#serverName#db1",
			"#1#portNumber#3306",
		)},
	}}
	r := NewResolver(dir, "cn=jdbc", Policy{})

	got, err := r.Resolve(context.Background(), ID{Instance: "test", Organism: "arcturus"})
	if !errors.Is(err, ErrIncompleteEntry) {
		t.Fatalf("expected ErrIncompleteEntry, got %v", err)
	}
	if got != (ConnectionParameters{}) {
		t.Fatalf("partially filled parameters must never escape: %+v", got)
	}
}

func TestResolveDowngradesReadOnlyInstanceOutsideProduction(t *testing.T) {
	policy := Policy{
		Environment:       "development",
		ReadOnlyInstances: []string{"pathogen"},
		ReadOnlyUsername:  "arcturus_ro",
		ReadOnlyPassword:  "readonly",
	}
	dir := &fakeDirectory{entries: map[string][]directory.Entry{
		"cn=pathogen,cn=jdbc": {fullEntry("falciparum"), fullEntry("funestus")},
	}}
	r := NewResolver(dir, "cn=jdbc", policy)

	for _, organism := range []string{"falciparum", "funestus"} {
		got, err := r.Resolve(context.Background(), ID{Instance: "pathogen", Organism: organism})
		if err != nil {
			t.Fatalf("Resolve(%s): %v", organism, err)
		}
		if got.Username != "arcturus_ro" || got.Password != "readonly" {
			t.Fatalf("expected downgraded credentials for %s, got %s/%s",
				organism, got.Username, got.Password)
		}
	}
}

func TestResolveKeepsDirectoryCredentialsInProduction(t *testing.T) {
	policy := Policy{
		Environment:       "production",
		ReadOnlyInstances: []string{"pathogen"},
		ReadOnlyUsername:  "arcturus_ro",
		ReadOnlyPassword:  "readonly",
	}
	dir := &fakeDirectory{entries: map[string][]directory.Entry{
		"cn=pathogen,cn=jdbc": {fullEntry("falciparum")},
	}}
	r := NewResolver(dir, "cn=jdbc", policy)

	got, err := r.Resolve(context.Background(), ID{Instance: "pathogen", Organism: "falciparum"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Username != "ro" || got.Password != "secret" {
		t.Fatalf("production credentials must pass through unmodified, got %s/%s",
			got.Username, got.Password)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]directory.Entry{
		"cn=test,cn=jdbc": {fullEntry("arcturus")},
	}}
	r := NewResolver(dir, "cn=jdbc", Policy{Environment: "staging"})

	id := ID{Instance: "test", Organism: "arcturus"}
	first, err := r.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolve not idempotent: %+v vs %+v", first, second)
	}
}

func TestOrganismsListsInstance(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]directory.Entry{
		"cn=test,cn=jdbc": {fullEntry("arcturus"), fullEntry("lemur")},
	}}
	r := NewResolver(dir, "cn=jdbc", Policy{})

	organisms, err := r.Organisms(context.Background(), "test", "")
	if err != nil {
		t.Fatalf("Organisms: %v", err)
	}
	if len(organisms) != 2 || organisms[0].Name != "arcturus" || organisms[1].Name != "lemur" {
		t.Fatalf("unexpected listing: %+v", organisms)
	}
}

func TestOrganismsUnknownInstance(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]directory.Entry{}}
	r := NewResolver(dir, "cn=jdbc", Policy{})

	if _, err := r.Organisms(context.Background(), "nosuch", ""); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("expected ErrUnknownInstance, got %v", err)
	}
}

func TestOrganismsSubclassScopesLookup(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]directory.Entry{
		"cn=helminths,cn=pathogen,cn=jdbc": {fullEntry("schisto")},
	}}
	r := NewResolver(dir, "cn=jdbc", Policy{})

	organisms, err := r.Organisms(context.Background(), "pathogen", "helminths")
	if err != nil {
		t.Fatalf("Organisms: %v", err)
	}
	if len(organisms) != 1 || organisms[0].Name != "schisto" {
		t.Fatalf("unexpected listing: %+v", organisms)
	}
}
