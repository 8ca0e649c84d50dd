package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGOrgNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select id, name, subdomain, created_at, updated_at from organizations where subdomain").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "subdomain", "created_at", "updated_at"}))

	_, err := store.Organizations(context.Background()).FindBySubdomain(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestPGUniqueViolationMapsToConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("insert into organizations").
		WithArgs(sqlmock.AnyArg(), "Acme", "acme").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "organizations_subdomain_key"})

	err := store.Organizations(context.Background()).Create(context.Background(), &Organization{Name: "Acme", Subdomain: "acme"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestPGRevokeConditional(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("update refresh_tokens set revoked=true where id").
		WithArgs("tok-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update refresh_tokens set revoked=true where id").
		WithArgs("tok-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := store.RefreshTokens(ctx).Revoke(ctx, "tok-1"); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := store.RefreshTokens(ctx).Revoke(ctx, "tok-1"); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("second revoke: expected ErrTokenRevoked, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestPGRevokeByHashIdempotent(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("update refresh_tokens set revoked=true where token_hash").
		WithArgs("hash-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := store.RefreshTokens(ctx).RevokeByHash(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeByHash of unknown hash: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPGMarkConsumedRace(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Now().UTC()
	mock.ExpectExec("update otp_codes set consumed_at").
		WithArgs("otp-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	err := store.OTPCodes(ctx).MarkConsumed(ctx, "otp-1", at)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("already-consumed code: expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestPGInTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into organizations").
		WithArgs(sqlmock.AnyArg(), "Acme", "acme").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	sentinel := errors.New("boom")
	err := store.InTx(context.Background(), func(tx Store) error {
		if err := tx.Organizations(context.Background()).Create(context.Background(), &Organization{Name: "Acme", Subdomain: "acme"}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestPGInTxCommitsAndNests(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), "a@b.test", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx Store) error {
		// A nested InTx must reuse the open transaction, not begin another.
		return tx.InTx(context.Background(), func(inner Store) error {
			return inner.Users(context.Background()).Create(context.Background(), &User{Email: "a@b.test"})
		})
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPGFindValidOTPPredicate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "code", "expires_at", "consumed_at", "created_at"}).
		AddRow("otp-1", "user-1", "123456", now.Add(5*time.Minute), nil, now)
	mock.ExpectQuery("select id, user_id, code, expires_at, consumed_at, created_at from otp_codes").
		WithArgs("user-1", "123456", now).
		WillReturnRows(rows)

	ctx := context.Background()
	otp, err := store.OTPCodes(ctx).FindValid(ctx, "user-1", "123456", now)
	if err != nil {
		t.Fatalf("FindValid: %v", err)
	}
	if otp.ID != "otp-1" || otp.ConsumedAt != nil {
		t.Fatalf("unexpected row: %+v", otp)
	}
	expectationsMet(t, mock)
}
