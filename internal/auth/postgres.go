package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tasklane.app/internal/ids"
)

var _ Store = (*PGStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx so the same store
// code serves transactional and non-transactional paths.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
	q  querier
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, q: db}
}

func (s *PGStore) Organizations(context.Context) OrganizationStore { return &orgStore{q: s.q} }
func (s *PGStore) Users(context.Context) UserStore                 { return &userStore{q: s.q} }
func (s *PGStore) Memberships(context.Context) MembershipStore     { return &membershipStore{q: s.q} }
func (s *PGStore) OTPCodes(context.Context) OTPStore               { return &otpStore{q: s.q} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore {
	return &refreshTokenStore{q: s.q}
}

// InTx runs fn against a transactional view. A rollback on error (or on
// caller cancellation) leaves no partial organization, user, membership
// or token rows behind. Nested calls reuse the open transaction.
func (s *PGStore) InTx(ctx context.Context, fn func(Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&PGStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// mapPGError translates driver errors into store sentinels.
func mapPGError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

// Organization store -------------------------------------------------------

type orgStore struct{ q querier }

func (s *orgStore) Create(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	_, err := s.q.ExecContext(ctx,
		`insert into organizations(id, name, subdomain) values($1,$2,$3)`,
		org.ID, org.Name, org.Subdomain,
	)
	return mapPGError(err)
}

func (s *orgStore) Find(ctx context.Context, id string) (*Organization, error) {
	return s.scanOne(s.q.QueryRowContext(ctx,
		`select id, name, subdomain, created_at, updated_at from organizations where id=$1`, id))
}

func (s *orgStore) FindBySubdomain(ctx context.Context, subdomain string) (*Organization, error) {
	return s.scanOne(s.q.QueryRowContext(ctx,
		`select id, name, subdomain, created_at, updated_at from organizations where subdomain=$1`, subdomain))
}

func (s *orgStore) scanOne(row *sql.Row) (*Organization, error) {
	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Subdomain, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

// User store ---------------------------------------------------------------

type userStore struct{ q querier }

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	hash := sql.NullString{String: u.PasswordHash, Valid: u.PasswordHash != ""}
	_, err := s.q.ExecContext(ctx,
		`insert into users(id, email, password_hash) values($1,$2,$3)`,
		u.ID, u.Email, hash,
	)
	return mapPGError(err)
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	return s.scanOne(s.q.QueryRowContext(ctx,
		`select id, email, password_hash, created_at, updated_at from users where id=$1`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanOne(s.q.QueryRowContext(ctx,
		`select id, email, password_hash, created_at, updated_at from users where email=$1`, email))
}

func (s *userStore) scanOne(row *sql.Row) (*User, error) {
	var (
		u    User
		hash sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &hash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.PasswordHash = hash.String
	return &u, nil
}

// Membership store ---------------------------------------------------------

type membershipStore struct{ q querier }

func (s *membershipStore) Create(ctx context.Context, m *Membership) error {
	_, err := s.q.ExecContext(ctx,
		`insert into memberships(user_id, org_id, role) values($1,$2,$3)`,
		m.UserID, m.OrgID, m.Role,
	)
	return mapPGError(err)
}

func (s *membershipStore) Find(ctx context.Context, userID, orgID string) (*Membership, error) {
	row := s.q.QueryRowContext(ctx,
		`select user_id, org_id, role, created_at from memberships where user_id=$1 and org_id=$2`,
		userID, orgID)
	var m Membership
	if err := row.Scan(&m.UserID, &m.OrgID, &m.Role, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *membershipStore) ListByUser(ctx context.Context, userID string) ([]Membership, error) {
	rows, err := s.q.QueryContext(ctx,
		`select user_id, org_id, role, created_at from memberships where user_id=$1 order by created_at, org_id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.UserID, &m.OrgID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// OTP store ----------------------------------------------------------------

type otpStore struct{ q querier }

func (s *otpStore) Create(ctx context.Context, code *OTPCode) error {
	if code.ID == "" {
		code.ID = ids.New()
	}
	_, err := s.q.ExecContext(ctx,
		`insert into otp_codes(id, user_id, code, expires_at) values($1,$2,$3,$4)`,
		code.ID, code.UserID, code.Code, code.ExpiresAt,
	)
	return err
}

func (s *otpStore) FindValid(ctx context.Context, userID, code string, now time.Time) (*OTPCode, error) {
	row := s.q.QueryRowContext(ctx,
		`select id, user_id, code, expires_at, consumed_at, created_at from otp_codes
		 where user_id=$1 and code=$2 and expires_at>$3 and consumed_at is null
		 order by created_at desc limit 1`,
		userID, code, now)
	var (
		c        OTPCode
		consumed sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.ExpiresAt, &consumed, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if consumed.Valid {
		t := consumed.Time
		c.ConsumedAt = &t
	}
	return &c, nil
}

func (s *otpStore) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`update otp_codes set consumed_at=$2 where id=$1 and consumed_at is null`, id, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh token store ------------------------------------------------------

type refreshTokenStore struct{ q querier }

func (s *refreshTokenStore) Create(ctx context.Context, tok *RefreshToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.q.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, org_id, token_hash, expires_at) values($1,$2,$3,$4,$5)`,
		tok.ID, tok.UserID, tok.OrgID, tok.TokenHash, tok.ExpiresAt,
	)
	return mapPGError(err)
}

func (s *refreshTokenStore) FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	row := s.q.QueryRowContext(ctx,
		`select id, user_id, org_id, token_hash, expires_at, revoked, created_at
		 from refresh_tokens where token_hash=$1`, tokenHash)
	var t RefreshToken
	if err := row.Scan(&t.ID, &t.UserID, &t.OrgID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *refreshTokenStore) Revoke(ctx context.Context, id string) error {
	// Conditional update: when two refresh calls race on the same token,
	// exactly one sees RowsAffected=1 and the other fails as reuse.
	res, err := s.q.ExecContext(ctx,
		`update refresh_tokens set revoked=true where id=$1 and revoked=false`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTokenRevoked
	}
	return nil
}

func (s *refreshTokenStore) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := s.q.ExecContext(ctx,
		`update refresh_tokens set revoked=true where token_hash=$1`, tokenHash)
	return err
}
