package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tasklane.app/internal/auth"
	"tasklane.app/internal/tenant"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/",
}

var publicPrefixes = []string{
	"/v1/auth/",
}

// withTenant resolves the organization from the host header or bearer
// claim and attaches it to the context. Requests without a resolvable
// tenant pass through; handlers that require tenant context reject them.
func (a *API) withTenant(next http.Handler) http.Handler {
	if a.resolver == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org, err := a.resolver.Resolve(r.Context(), r.Host, r.Header.Get(authHeader))
		if err != nil {
			if !errors.Is(err, auth.ErrTenantUnresolved) {
				writeError(w, r, http.StatusInternalServerError, "tenant resolution failed")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenant.ContextWithOrg(r.Context(), org)))
	})
}

// withAuth verifies the bearer token on protected paths and enforces
// that the token's organization matches the resolved tenant. Resolution
// alone is never authorization.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.auth.Tokens().VerifyAccess(token)
		if err != nil {
			// Expired, malformed and wrong-issuer all collapse to one
			// client-facing message.
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		org, ok := tenant.OrgFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusBadRequest, "organization context required")
			return
		}
		if org.ID != claims.OrgID {
			writeError(w, r, http.StatusForbidden,
				strings.TrimPrefix(auth.ErrTenantMismatch.Error(), "auth: "))
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), *claims)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
