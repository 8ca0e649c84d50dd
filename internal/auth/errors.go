package auth

import "errors"

// Terminal error kinds surfaced to callers. Credential failures are kept
// deliberately undifferentiated so responses never reveal whether an
// email exists or which check failed.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrRateLimited        = errors.New("auth: too many attempts")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenRevoked       = errors.New("auth: token revoked")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrTenantUnresolved   = errors.New("auth: organization context required")
	ErrTenantMismatch     = errors.New("auth: token organization mismatch")
	ErrConflict           = errors.New("auth: already exists")
	ErrMembershipMissing  = errors.New("auth: no organization membership")
	ErrNotFound           = errors.New("auth: not found")
)
