// Package tenant maps inbound request metadata to an organization,
// establishing request-scoped tenant context for everything downstream.
package tenant

import (
	"context"
	"errors"
	"net"
	"strings"

	"tasklane.app/internal/auth"
)

// OrganizationFinder is the subset of the credential store the resolver
// needs.
type OrganizationFinder interface {
	Find(ctx context.Context, id string) (*auth.Organization, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*auth.Organization, error)
}

// ClaimsVerifier decodes a bearer token into claims. Resolution only
// reads the embedded org id; it performs no authorization.
type ClaimsVerifier interface {
	VerifyAccess(raw string) (*auth.Claims, error)
}

// Resolver resolves an organization from the host header or, failing
// that, from the bearer token's org claim. The subdomain path wins over
// the token claim even when they disagree; downstream authorization must
// still check that the token's org matches the resolved org.
type Resolver struct {
	orgs   OrganizationFinder
	tokens ClaimsVerifier
}

// NewResolver constructs a Resolver.
func NewResolver(orgs OrganizationFinder, tokens ClaimsVerifier) *Resolver {
	return &Resolver{orgs: orgs, tokens: tokens}
}

// Resolve maps (host, Authorization header) to an organization.
// Returns auth.ErrTenantUnresolved when neither path yields one; callers
// that require tenant context treat that as a hard failure.
func (r *Resolver) Resolve(ctx context.Context, host, authHeader string) (*auth.Organization, error) {
	if sub := subdomainLabel(host); sub != "" {
		org, err := r.orgs.FindBySubdomain(ctx, sub)
		if err == nil {
			return org, nil
		}
		if !errors.Is(err, auth.ErrNotFound) {
			return nil, err
		}
	}

	if raw, ok := bearerToken(authHeader); ok && r.tokens != nil {
		claims, err := r.tokens.VerifyAccess(raw)
		if err == nil && claims.OrgID != "" {
			org, err := r.orgs.Find(ctx, claims.OrgID)
			if err == nil {
				return org, nil
			}
			if !errors.Is(err, auth.ErrNotFound) {
				return nil, err
			}
		}
	}

	return nil, auth.ErrTenantUnresolved
}

// subdomainLabel extracts the candidate subdomain: the leftmost label of
// a dotted host, with the port stripped. Empty and "www" labels resolve
// nothing.
func subdomainLabel(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	idx := strings.IndexByte(host, '.')
	if idx < 0 {
		return ""
	}
	label := strings.ToLower(host[:idx])
	if label == "" || label == "www" {
		return ""
	}
	return label
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

type orgContextKey struct{}

// ContextWithOrg attaches the resolved organization to the context.
func ContextWithOrg(ctx context.Context, org *Organization) context.Context {
	if org == nil {
		return ctx
	}
	return context.WithValue(ctx, orgContextKey{}, org)
}

// Organization aliases the auth entity for context helpers.
type Organization = auth.Organization

// OrgFromContext returns the resolved organization, if any.
func OrgFromContext(ctx context.Context) (*Organization, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(orgContextKey{}).(*Organization)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
