package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"tasklane.app/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore implements Store with in-process concurrency safety. It backs
// tests and local development; production wiring uses PGStore.
type MemStore struct {
	mu          sync.Mutex
	orgs        map[string]Organization   // id -> org
	users       map[string]User           // id -> user
	memberships map[string][]Membership   // userID -> memberships
	otps        map[string]OTPCode        // id -> code
	refresh     map[string]RefreshToken   // id -> token
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		orgs:        make(map[string]Organization),
		users:       make(map[string]User),
		memberships: make(map[string][]Membership),
		otps:        make(map[string]OTPCode),
		refresh:     make(map[string]RefreshToken),
	}
}

func (s *MemStore) Organizations(context.Context) OrganizationStore { return (*memOrgs)(s) }
func (s *MemStore) Users(context.Context) UserStore                 { return (*memUsers)(s) }
func (s *MemStore) Memberships(context.Context) MembershipStore     { return (*memMemberships)(s) }
func (s *MemStore) OTPCodes(context.Context) OTPStore               { return (*memOTPs)(s) }
func (s *MemStore) RefreshTokens(context.Context) RefreshTokenStore { return (*memRefresh)(s) }

// InTx snapshots the maps and restores them when fn fails, so a failed
// multi-step sequence leaves no partial rows, matching the contract the
// orchestrator relies on.
func (s *MemStore) InTx(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	snapshot := s.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restore(snapshot)
		s.mu.Unlock()
		return err
	}
	// A cancelled context fails the transaction, so the mutations must
	// roll back with it.
	if err := ctx.Err(); err != nil {
		s.mu.Lock()
		s.restore(snapshot)
		s.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	orgs        map[string]Organization
	users       map[string]User
	memberships map[string][]Membership
	otps        map[string]OTPCode
	refresh     map[string]RefreshToken
}

func (s *MemStore) clone() memSnapshot {
	snap := memSnapshot{
		orgs:        make(map[string]Organization, len(s.orgs)),
		users:       make(map[string]User, len(s.users)),
		memberships: make(map[string][]Membership, len(s.memberships)),
		otps:        make(map[string]OTPCode, len(s.otps)),
		refresh:     make(map[string]RefreshToken, len(s.refresh)),
	}
	for k, v := range s.orgs {
		snap.orgs[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.memberships {
		snap.memberships[k] = append([]Membership(nil), v...)
	}
	for k, v := range s.otps {
		snap.otps[k] = v
	}
	for k, v := range s.refresh {
		snap.refresh[k] = v
	}
	return snap
}

func (s *MemStore) restore(snap memSnapshot) {
	s.orgs = snap.orgs
	s.users = snap.users
	s.memberships = snap.memberships
	s.otps = snap.otps
	s.refresh = snap.refresh
}

// StoredOTP returns the latest unconsumed code for a user. Test helper;
// production delivery goes through an OTPSender.
func (s *MemStore) StoredOTP(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  OTPCode
		found bool
	)
	for _, c := range s.otps {
		if c.UserID != userID || c.ConsumedAt != nil {
			continue
		}
		if !found || c.CreatedAt.After(best.CreatedAt) {
			best = c
			found = true
		}
	}
	return best.Code, found
}

// Organization store -------------------------------------------------------

type memOrgs MemStore

func (s *memOrgs) Create(ctx context.Context, org *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orgs {
		if existing.Subdomain == org.Subdomain {
			return ErrConflict
		}
	}
	if org.ID == "" {
		org.ID = ids.New()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	s.orgs[org.ID] = *org
	return nil
}

func (s *memOrgs) Find(ctx context.Context, id string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &org, nil
}

func (s *memOrgs) FindBySubdomain(ctx context.Context, subdomain string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, org := range s.orgs {
		if org.Subdomain == subdomain {
			out := org
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// User store ---------------------------------------------------------------

type memUsers MemStore

func (s *memUsers) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return nil
}

func (s *memUsers) Find(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *memUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Membership store ---------------------------------------------------------

type memMemberships MemStore

func (s *memMemberships) Create(ctx context.Context, m *Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships[m.UserID] {
		if existing.OrgID == m.OrgID {
			return ErrConflict
		}
	}
	m.CreatedAt = time.Now().UTC()
	s.memberships[m.UserID] = append(s.memberships[m.UserID], *m)
	return nil
}

func (s *memMemberships) Find(ctx context.Context, userID, orgID string) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships[userID] {
		if m.OrgID == orgID {
			out := m
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memMemberships) ListByUser(ctx context.Context, userID string) ([]Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Membership(nil), s.memberships[userID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrgID < out[j].OrgID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// OTP store ----------------------------------------------------------------

type memOTPs MemStore

func (s *memOTPs) Create(ctx context.Context, code *OTPCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code.ID == "" {
		code.ID = ids.New()
	}
	code.CreatedAt = time.Now().UTC()
	s.otps[code.ID] = *code
	return nil
}

func (s *memOTPs) FindValid(ctx context.Context, userID, code string, now time.Time) (*OTPCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  OTPCode
		found bool
	)
	for _, c := range s.otps {
		if c.UserID != userID || c.Code != code {
			continue
		}
		if c.ConsumedAt != nil || !c.ExpiresAt.After(now) {
			continue
		}
		if !found || c.CreatedAt.After(best.CreatedAt) {
			best = c
			found = true
		}
	}
	if !found {
		return nil, ErrNotFound
	}
	return &best, nil
}

func (s *memOTPs) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.otps[id]
	if !ok || c.ConsumedAt != nil {
		return ErrNotFound
	}
	c.ConsumedAt = &at
	s.otps[id] = c
	return nil
}

// Refresh token store ------------------------------------------------------

type memRefresh MemStore

func (s *memRefresh) Create(ctx context.Context, tok *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	tok.CreatedAt = time.Now().UTC()
	s.refresh[tok.ID] = *tok
	return nil
}

func (s *memRefresh) FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.refresh {
		if t.TokenHash == tokenHash {
			out := t
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memRefresh) Revoke(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[id]
	if !ok {
		return ErrNotFound
	}
	if t.Revoked {
		return ErrTokenRevoked
	}
	t.Revoked = true
	s.refresh[id] = t
	return nil
}

func (s *memRefresh) RevokeByHash(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.refresh {
		if t.TokenHash == tokenHash {
			t.Revoked = true
			s.refresh[id] = t
			return nil
		}
	}
	return nil
}
