package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasklane.app/internal/obs"
)

const defaultOTPTTL = 10 * time.Minute

// RateLimiter gates login attempts per identity.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Identity is the verified subject of an external identity token.
type Identity struct {
	Email   string
	Name    string
	Subject string
}

// IdentityVerifier validates tokens minted by an external identity
// provider. Implementations must fail closed: a timeout is a
// verification failure, never implicit success.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (Identity, error)
}

// OTPSender delivers a one-time code to the user out of band.
type OTPSender interface {
	Send(ctx context.Context, user *User, code string) error
}

// logSender emits the code to the service log. Demo delivery; production
// wiring swaps in an email or SMS sender.
type logSender struct{}

func (logSender) Send(_ context.Context, user *User, code string) error {
	obs.LogEvent(map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   "info",
		"msg":     "otp_issued",
		"user_id": user.ID,
		"code":    code,
	})
	return nil
}

// Service composes the credential store, token service, rate limiter and
// identity verifier into the register/login/verify/refresh/logout state
// machine. Per login session it moves Unauthenticated → OtpPending →
// Authenticated; registration skips the OTP step.
type Service struct {
	store    Store
	tokens   *Tokens
	limiter  RateLimiter
	identity IdentityVerifier
	sender   OTPSender
	otpTTL   time.Duration
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRateLimiter installs the login attempt limiter.
func WithRateLimiter(l RateLimiter) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithIdentityVerifier installs the external identity provider boundary.
func WithIdentityVerifier(v IdentityVerifier) ServiceOption {
	return func(s *Service) {
		if v != nil {
			s.identity = v
		}
	}
}

// WithOTPSender overrides one-time code delivery.
func WithOTPSender(sender OTPSender) ServiceOption {
	return func(s *Service) {
		if sender != nil {
			s.sender = sender
		}
	}
}

// WithOTPTTL overrides the one-time code lifetime.
func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the orchestrator.
func NewService(store Store, tokens *Tokens, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		tokens: tokens,
		sender: logSender{},
		otpTTL: defaultOTPTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens exposes the token service for transport-layer verification.
func (s *Service) Tokens() *Tokens { return s.tokens }

// RegisterParams are the inputs for a new tenant registration.
type RegisterParams struct {
	OrgName   string
	Subdomain string
	Email     string
	Password  string
}

// Register creates the organization, its founding admin user and the
// admin membership in one transaction, then issues a token pair
// directly: first use skips the OTP step. A subdomain or email collision
// fails with ErrConflict before anything is committed.
func (s *Service) Register(ctx context.Context, p RegisterParams) (TokenPair, error) {
	orgName := strings.TrimSpace(p.OrgName)
	subdomain := strings.ToLower(strings.TrimSpace(p.Subdomain))
	email := normalizeEmail(p.Email)
	if orgName == "" || subdomain == "" || email == "" || p.Password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	// bcrypt is deliberately slow; hash outside the transaction.
	hash, err := HashPassword(p.Password)
	if err != nil {
		return TokenPair{}, err
	}

	var pair TokenPair
	err = s.store.InTx(ctx, func(tx Store) error {
		// The registrant is choosing the subdomain, so the conflict check
		// is allowed to say which field collided.
		if _, err := tx.Organizations(ctx).FindBySubdomain(ctx, subdomain); err == nil {
			return fmt.Errorf("%w: subdomain already taken", ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := tx.Users(ctx).FindByEmail(ctx, email); err == nil {
			return fmt.Errorf("%w: email already registered", ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		org := &Organization{Name: orgName, Subdomain: subdomain}
		if err := tx.Organizations(ctx).Create(ctx, org); err != nil {
			return err
		}
		user := &User{Email: email, PasswordHash: hash}
		if err := tx.Users(ctx).Create(ctx, user); err != nil {
			return err
		}
		membership := &Membership{UserID: user.ID, OrgID: org.ID, Role: RoleAdmin}
		if err := tx.Memberships(ctx).Create(ctx, membership); err != nil {
			return err
		}

		pair, err = s.mintPair(ctx, tx, user.ID, org.ID, RoleAdmin)
		return err
	})
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Login validates credentials and, on success, stores a one-time code
// and hands it to the sender. No token is issued here; the session is
// OtpPending until VerifyOTP. The limiter is consulted before any
// credential work, and the failure response never distinguishes an
// unknown email from a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return ErrInvalidCredentials
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, email)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrRateLimited
		}
	}

	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if user.PasswordHash == "" || !VerifyPassword(user.PasswordHash, password) {
		return ErrInvalidCredentials
	}

	code, err := GenerateOTP()
	if err != nil {
		return err
	}
	otp := &OTPCode{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: s.now().UTC().Add(s.otpTTL),
	}
	if err := s.store.OTPCodes(ctx).Create(ctx, otp); err != nil {
		return err
	}
	return s.sender.Send(ctx, user, code)
}

// VerifyOTP consumes a valid one-time code and issues a token pair.
// Invalid, expired and already-consumed codes all produce the same
// ErrInvalidCredentials. orgID selects the membership to scope tokens
// to; when empty, the user's earliest membership is used.
func (s *Service) VerifyOTP(ctx context.Context, email, code, orgID string) (TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	now := s.now().UTC()
	var pair TokenPair
	err = s.store.InTx(ctx, func(tx Store) error {
		otp, err := tx.OTPCodes(ctx).FindValid(ctx, user.ID, code, now)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidCredentials
			}
			return err
		}
		// A concurrent consume of the same code loses here.
		if err := tx.OTPCodes(ctx).MarkConsumed(ctx, otp.ID, now); err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidCredentials
			}
			return err
		}

		membership, err := s.pickMembership(ctx, tx, user.ID, orgID)
		if err != nil {
			return err
		}
		pair, err = s.mintPair(ctx, tx, user.ID, membership.OrgID, membership.Role)
		return err
	})
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// pickMembership chooses the membership tokens are scoped to. With an
// explicit orgID the user must actually belong to that organization;
// without one the earliest membership wins, which is deterministic
// because ListByUser orders by creation time.
func (s *Service) pickMembership(ctx context.Context, tx Store, userID, orgID string) (Membership, error) {
	if orgID != "" {
		m, err := tx.Memberships(ctx).Find(ctx, userID, orgID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Membership{}, ErrMembershipMissing
			}
			return Membership{}, err
		}
		return *m, nil
	}
	memberships, err := tx.Memberships(ctx).ListByUser(ctx, userID)
	if err != nil {
		return Membership{}, err
	}
	if len(memberships) == 0 {
		return Membership{}, ErrMembershipMissing
	}
	return memberships[0], nil
}

// OAuthLogin verifies an external identity token, finds or creates the
// user and their membership in the already-resolved organization, and
// issues a token pair. Tenant resolution must have succeeded first.
func (s *Service) OAuthLogin(ctx context.Context, idToken string, org *Organization) (TokenPair, error) {
	if org == nil {
		return TokenPair{}, ErrTenantUnresolved
	}
	if s.identity == nil || strings.TrimSpace(idToken) == "" {
		return TokenPair{}, ErrInvalidCredentials
	}
	ident, err := s.identity.Verify(ctx, idToken)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	email := normalizeEmail(ident.Email)
	if email == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	var pair TokenPair
	err = s.store.InTx(ctx, func(tx Store) error {
		user, err := tx.Users(ctx).FindByEmail(ctx, email)
		if errors.Is(err, ErrNotFound) {
			user = &User{Email: email}
			err = tx.Users(ctx).Create(ctx, user)
		}
		if err != nil {
			return err
		}

		membership, err := tx.Memberships(ctx).Find(ctx, user.ID, org.ID)
		if errors.Is(err, ErrNotFound) {
			membership = &Membership{UserID: user.ID, OrgID: org.ID, Role: RoleMember}
			err = tx.Memberships(ctx).Create(ctx, membership)
		}
		if err != nil {
			return err
		}

		pair, err = s.mintPair(ctx, tx, user.ID, org.ID, membership.Role)
		return err
	})
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// replacement pair is issued in the same transaction, even when nothing
// else changed. Reuse of a revoked or expired token is a hard failure;
// under concurrent refresh of the same token at most one caller wins.
func (s *Service) Refresh(ctx context.Context, rawToken string) (TokenPair, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return TokenPair{}, ErrTokenMalformed
	}
	tokenHash := HashToken(rawToken)
	now := s.now().UTC()

	var pair TokenPair
	err := s.store.InTx(ctx, func(tx Store) error {
		rec, err := tx.RefreshTokens(ctx).FindByHash(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrTokenMalformed
			}
			return err
		}
		if rec.Revoked {
			return ErrTokenRevoked
		}
		if !rec.ExpiresAt.After(now) {
			return ErrTokenExpired
		}

		// Re-derive the membership for the token's bound org; revoking a
		// user's membership must cut off their refresh chain.
		membership, err := tx.Memberships(ctx).Find(ctx, rec.UserID, rec.OrgID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrMembershipMissing
			}
			return err
		}

		if err := tx.RefreshTokens(ctx).Revoke(ctx, rec.ID); err != nil {
			return err
		}
		pair, err = s.mintPair(ctx, tx, rec.UserID, rec.OrgID, membership.Role)
		return err
	})
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout revokes the presented refresh token. It is idempotent and
// reveals nothing about token validity: unknown tokens succeed too.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil
	}
	return s.store.RefreshTokens(ctx).RevokeByHash(ctx, HashToken(rawToken))
}

// mintPair issues an access token and persists a fresh refresh token.
func (s *Service) mintPair(ctx context.Context, tx Store, userID, orgID string, role Role) (TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccess(userID, orgID, role)
	if err != nil {
		return TokenPair{}, err
	}
	raw, err := s.tokens.NewRefresh()
	if err != nil {
		return TokenPair{}, err
	}
	rec := &RefreshToken{
		UserID:    userID,
		OrgID:     orgID,
		TokenHash: HashToken(raw),
		ExpiresAt: s.now().UTC().Add(s.tokens.RefreshTTL()),
	}
	if err := tx.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
