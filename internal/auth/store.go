package auth

import (
	"context"
	"time"
)

// Store describes persistence required by the auth subsystem. InTx runs
// fn against a transactional view of the same store; register and
// refresh rotation rely on it for atomicity.
type Store interface {
	Organizations(ctx context.Context) OrganizationStore
	Users(ctx context.Context) UserStore
	Memberships(ctx context.Context) MembershipStore
	OTPCodes(ctx context.Context) OTPStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
	InTx(ctx context.Context, fn func(Store) error) error
}

// OrganizationStore manages tenant records.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
	FindBySubdomain(ctx context.Context, subdomain string) (*Organization, error)
}

// UserStore manages identities.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// MembershipStore manages (user, organization, role) joins.
type MembershipStore interface {
	Create(ctx context.Context, m *Membership) error
	Find(ctx context.Context, userID, orgID string) (*Membership, error)
	// ListByUser returns memberships ordered by creation time so callers
	// get a deterministic first membership.
	ListByUser(ctx context.Context, userID string) ([]Membership, error)
}

// OTPStore manages one-time codes.
type OTPStore interface {
	Create(ctx context.Context, code *OTPCode) error
	// FindValid selects the most recent code matching (user, code) that
	// is unconsumed and unexpired as of now. Selection is by validity
	// predicate, not merely recency.
	FindValid(ctx context.Context, userID, code string, now time.Time) (*OTPCode, error)
	MarkConsumed(ctx context.Context, id string, at time.Time) error
}

// RefreshTokenStore manages the refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Revoke marks the token revoked if and only if it is not already;
	// returns ErrTokenRevoked when another caller got there first.
	Revoke(ctx context.Context, id string) error
	// RevokeByHash is the idempotent logout path: revoking an unknown or
	// already-revoked hash succeeds silently.
	RevokeByHash(ctx context.Context, tokenHash string) error
}
