package auth

import (
	"context"
	"errors"
	"testing"
)

func TestMemStoreInTxRollsBackOnError(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	failed := errors.New("step two failed")
	err := store.InTx(ctx, func(tx Store) error {
		if err := tx.Users(ctx).Create(ctx, &User{Email: "partial@acme.test"}); err != nil {
			return err
		}
		return failed
	})
	if !errors.Is(err, failed) {
		t.Fatalf("InTx err = %v, want %v", err, failed)
	}
	if _, err := store.Users(ctx).FindByEmail(ctx, "partial@acme.test"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail after rollback: err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreInTxCancelRollsBack(t *testing.T) {
	store := NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := store.InTx(ctx, func(tx Store) error {
		if err := tx.Users(ctx).Create(ctx, &User{Email: "ghost@acme.test"}); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("InTx err = %v, want context.Canceled", err)
	}
	if _, err := store.Users(context.Background()).FindByEmail(context.Background(), "ghost@acme.test"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail after cancelled transaction: err = %v, want ErrNotFound", err)
	}
}
