package auth

import "time"

// Role is a user's role within one organization.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User is an identity with a unique email. PasswordHash is empty for
// accounts created through an external identity provider.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Organization is the tenant unit. Subdomain is unique and immutable.
type Organization struct {
	ID        string
	Name      string
	Subdomain string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership joins a user to an organization with a role. Unique per
// (user, organization) pair; never shared across tenants.
type Membership struct {
	UserID    string
	OrgID     string
	Role      Role
	CreatedAt time.Time
}

// OTPCode is a one-time login code. ConsumedAt is set exactly once on
// successful verification; a consumed code never verifies again.
type OTPCode struct {
	ID         string
	UserID     string
	Code       string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// RefreshToken is the persisted form of an opaque refresh credential.
// Only the SHA-256 hash is stored; the raw value exists in transit only.
type RefreshToken struct {
	ID        string
	UserID    string
	OrgID     string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// TokenPair carries freshly issued credentials back to the caller.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
