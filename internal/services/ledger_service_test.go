package services

import (
	"context"
	"testing"

	"pointpay/internal/models"
	"pointpay/internal/store"
)

func TestCreditAppendsEntryWithSnapshot(t *testing.T) {
	var updatedBalance int64
	var inserted store.PointEntryInput
	svc := NewLedgerService(fakeTxRunner{}, stubAccountStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Account, error) {
			return models.Account{ID: "acct-1", UserID: "user-1", Balance: 1000}, nil
		},
		updateBalanceFn: func(_ context.Context, _ store.Execer, _ string, balance int64) error {
			updatedBalance = balance
			return nil
		},
	}, stubLedgerStore{
		insertFn: func(_ context.Context, _ store.Execer, entry store.PointEntryInput) error {
			inserted = entry
			return nil
		},
	}, &stubHub{})

	fee := int64(300)
	entry, err := svc.Credit(context.Background(), nil, EntryRequest{
		UserID:        "user-1",
		Amount:        700,
		ReferenceType: models.ReferencePayment,
		PlatformFee:   &fee,
		Description:   "point top-up",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updatedBalance != 1700 || entry.BalanceAfter != 1700 {
		t.Fatalf("unexpected balance: updated=%d entry=%d", updatedBalance, entry.BalanceAfter)
	}
	if inserted.Direction != models.DirectionCredit || inserted.Amount != 700 {
		t.Fatalf("unexpected entry: %+v", inserted)
	}
	if inserted.PlatformFee == nil || *inserted.PlatformFee != 300 {
		t.Fatalf("platform fee not recorded: %+v", inserted)
	}
	if inserted.BalanceAfter != 1700 {
		t.Fatalf("balance snapshot missing: %+v", inserted)
	}
}

func TestDebitRejectsOverdraft(t *testing.T) {
	svc := NewLedgerService(fakeTxRunner{}, stubAccountStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Account, error) {
			return models.Account{ID: "acct-1", Balance: 500}, nil
		},
		updateBalanceFn: func(context.Context, store.Execer, string, int64) error {
			t.Fatalf("balance must not change on overdraft")
			return nil
		},
	}, stubLedgerStore{
		insertFn: func(context.Context, store.Execer, store.PointEntryInput) error {
			t.Fatalf("no entry may be written on overdraft")
			return nil
		},
	}, &stubHub{})

	_, err := svc.Debit(context.Background(), nil, EntryRequest{UserID: "user-1", Amount: 700, ReferenceType: models.ReferenceWithdrawal})
	if err != ErrInsufficientPoints {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
}

func TestDebitExactBalance(t *testing.T) {
	svc := NewLedgerService(fakeTxRunner{}, stubAccountStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Account, error) {
			return models.Account{ID: "acct-1", Balance: 700}, nil
		},
	}, stubLedgerStore{}, &stubHub{})

	entry, err := svc.Debit(context.Background(), nil, EntryRequest{UserID: "user-1", Amount: 700, ReferenceType: models.ReferenceWithdrawal})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.BalanceAfter != 0 {
		t.Fatalf("expected zero balance, got %d", entry.BalanceAfter)
	}
}

func TestApplyRejectsNonPositiveAmounts(t *testing.T) {
	svc := NewLedgerService(fakeTxRunner{}, stubAccountStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Account, error) {
			t.Fatalf("unexpected store call")
			return models.Account{}, nil
		},
	}, stubLedgerStore{}, &stubHub{})

	for _, amount := range []int64{0, -100} {
		if _, err := svc.Credit(context.Background(), nil, EntryRequest{UserID: "u", Amount: amount}); err != ErrInvalidAmount {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
		if _, err := svc.Debit(context.Background(), nil, EntryRequest{UserID: "u", Amount: amount}); err != ErrInvalidAmount {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestAdminAdjustBroadcastsCommittedBalance(t *testing.T) {
	hub := &stubHub{}
	svc := NewLedgerService(fakeTxRunner{}, stubAccountStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Account, error) {
			return models.Account{ID: "acct-1", Balance: 100}, nil
		},
	}, stubLedgerStore{}, hub)

	entry, err := svc.AdminAdjust(context.Background(), AdminAdjustRequest{
		UserID:    "user-1",
		Amount:    400,
		Direction: models.DirectionCredit,
		Reason:    "goodwill",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ReferenceType != models.ReferenceAdmin {
		t.Fatalf("expected ADMIN reference, got %s", entry.ReferenceType)
	}
	if entry.Description != "admin point adjustment (goodwill)" {
		t.Fatalf("unexpected description: %q", entry.Description)
	}
	if hub.count() != 1 {
		t.Fatalf("expected 1 broadcast, got %d", hub.count())
	}
	if hub.calls[0].Balance != 500 {
		t.Fatalf("unexpected broadcast balance: %d", hub.calls[0].Balance)
	}
}

func TestAdminAdjustDebitRespectsBalance(t *testing.T) {
	hub := &stubHub{}
	svc := NewLedgerService(fakeTxRunner{}, stubAccountStore{
		getForUpdateFn: func(context.Context, store.Getter, string) (models.Account, error) {
			return models.Account{ID: "acct-1", Balance: 100}, nil
		},
	}, stubLedgerStore{}, hub)

	_, err := svc.AdminAdjust(context.Background(), AdminAdjustRequest{
		UserID:    "user-1",
		Amount:    400,
		Direction: models.DirectionDebit,
	})
	if err != ErrInsufficientPoints {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if hub.count() != 0 {
		t.Fatalf("nothing may be broadcast on failure")
	}
}

func TestVerifyAccount(t *testing.T) {
	svc := NewLedgerService(fakeTxRunner{}, stubAccountStore{
		getByUserFn: func(context.Context, string) (models.Account, error) {
			return models.Account{ID: "acct-1", Balance: 900}, nil
		},
	}, stubLedgerStore{
		sumSignedFn: func(context.Context, string) (int64, error) {
			return 900, nil
		},
	}, &stubHub{})

	stored, replayed, err := svc.VerifyAccount(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 900 || replayed != 900 {
		t.Fatalf("unexpected verify result: stored=%d replayed=%d", stored, replayed)
	}
}
