package tenant

import (
	"context"
	"errors"
	"testing"

	"tasklane.app/internal/auth"
)

type mapFinder map[string]*auth.Organization

func (f mapFinder) Find(_ context.Context, id string) (*auth.Organization, error) {
	for _, org := range f {
		if org.ID == id {
			return org, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f mapFinder) FindBySubdomain(_ context.Context, subdomain string) (*auth.Organization, error) {
	org, ok := f[subdomain]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return org, nil
}

func testOrgs() mapFinder {
	return mapFinder{
		"acme": {ID: "org-acme", Name: "Acme", Subdomain: "acme"},
		"beta": {ID: "org-beta", Name: "Beta", Subdomain: "beta"},
	}
}

func testVerifier(t *testing.T) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens("resolver-test-secret", "tasklane-test")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tokens
}

func TestResolveBySubdomain(t *testing.T) {
	r := NewResolver(testOrgs(), testVerifier(t))

	cases := []struct {
		host string
		want string
	}{
		{"acme.tasklane.app", "org-acme"},
		{"ACME.tasklane.app", "org-acme"},
		{"beta.tasklane.app:8443", "org-beta"},
		{"acme.localhost:8080", "org-acme"},
	}
	for _, tc := range cases {
		org, err := r.Resolve(context.Background(), tc.host, "")
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tc.host, err)
		}
		if org.ID != tc.want {
			t.Fatalf("Resolve(%q) = %s, want %s", tc.host, org.ID, tc.want)
		}
	}
}

func TestResolveSkipsNonTenantHosts(t *testing.T) {
	r := NewResolver(testOrgs(), testVerifier(t))

	for _, host := range []string{"www.tasklane.app", "tasklane.app", "localhost:8080", ""} {
		_, err := r.Resolve(context.Background(), host, "")
		if !errors.Is(err, auth.ErrTenantUnresolved) {
			t.Fatalf("Resolve(%q): expected ErrTenantUnresolved, got %v", host, err)
		}
	}
}

func TestResolveFallsBackToBearerClaim(t *testing.T) {
	tokens := testVerifier(t)
	r := NewResolver(testOrgs(), tokens)

	signed, _, err := tokens.IssueAccess("user-1", "org-beta", auth.RoleMember)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	org, err := r.Resolve(context.Background(), "localhost:8080", "Bearer "+signed)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if org.ID != "org-beta" {
		t.Fatalf("resolved %s, want org-beta", org.ID)
	}
}

func TestResolveSubdomainWinsOverClaim(t *testing.T) {
	tokens := testVerifier(t)
	r := NewResolver(testOrgs(), tokens)

	signed, _, err := tokens.IssueAccess("user-1", "org-beta", auth.RoleMember)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// Host says acme, token says beta. Resolution picks the host; the
	// authorization layer later rejects the mismatch.
	org, err := r.Resolve(context.Background(), "acme.tasklane.app", "Bearer "+signed)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if org.ID != "org-acme" {
		t.Fatalf("resolved %s, want org-acme", org.ID)
	}
}

func TestResolveIgnoresGarbageBearer(t *testing.T) {
	r := NewResolver(testOrgs(), testVerifier(t))

	for _, header := range []string{"Bearer not-a-jwt", "Basic abc", "Bearer ", "bearer"} {
		_, err := r.Resolve(context.Background(), "tasklane.app", header)
		if !errors.Is(err, auth.ErrTenantUnresolved) {
			t.Fatalf("header %q: expected ErrTenantUnresolved, got %v", header, err)
		}
	}
}

func TestOrgContextRoundTrip(t *testing.T) {
	org := &Organization{ID: "org-acme"}
	ctx := ContextWithOrg(context.Background(), org)

	got, ok := OrgFromContext(ctx)
	if !ok || got.ID != "org-acme" {
		t.Fatalf("OrgFromContext = %v, %v", got, ok)
	}
	if _, ok := OrgFromContext(context.Background()); ok {
		t.Fatal("empty context must not carry an organization")
	}
	if ContextWithOrg(context.Background(), nil) == nil {
		t.Fatal("nil org must return the original context")
	}
}

func TestSubdomainLabel(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"acme.tasklane.app", "acme"},
		{"acme.tasklane.app:443", "acme"},
		{"WWW.tasklane.app", ""},
		{"tasklane.app", "tasklane"},
		{"localhost", ""},
		{"", ""},
		{".tasklane.app", ""},
	}
	for _, tc := range cases {
		if got := subdomainLabel(tc.host); got != tc.want {
			t.Fatalf("subdomainLabel(%q) = %q, want %q", tc.host, got, tc.want)
		}
	}
}
