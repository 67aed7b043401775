package services

import (
	"context"
	"errors"
	"time"

	"pointpay/internal/models"
	"pointpay/internal/provider"
	"pointpay/internal/store"
	"pointpay/internal/worker"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidPaymentKey    = errors.New("payment key is required")
	ErrInvalidBankCode      = errors.New("bank code is required")
	ErrInvalidAccount       = errors.New("account number is required")
	ErrFeeExceedsAmount     = errors.New("fee exceeds requested amount")
	ErrInsufficientPoints   = errors.New("insufficient point balance")
	ErrAlreadyConfirmed     = errors.New("payment already confirmed")
	ErrInProcessing         = errors.New("payment is being processed")
	ErrNothingToRefund      = errors.New("nothing to refund")
	ErrNoRegistrationRecord = errors.New("no registration record for survey")
	ErrNotSurveyOwner       = errors.New("caller does not own the survey")
	ErrUnauthorized         = errors.New("resource does not belong to user")
	ErrInvalidSurveyState   = errors.New("survey state does not allow refund")
)

type AccountStore interface {
	GetByUser(ctx context.Context, userID string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error
}

type LedgerStore interface {
	InsertEntry(ctx context.Context, tx store.Execer, entry store.PointEntryInput) error
	FindByReference(ctx context.Context, refType models.ReferenceType, refID string) (models.PointEntry, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.PointEntry, error)
	SumSignedByAccount(ctx context.Context, accountID string) (int64, error)
}

type PaymentStore interface {
	Create(ctx context.Context, tx store.Execer, input store.PaymentInput) error
	GetByID(ctx context.Context, paymentID string) (models.Payment, error)
	GetByKey(ctx context.Context, paymentKey string) (models.Payment, error)
	GetForUpdate(ctx context.Context, tx store.Getter, paymentID string) (models.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]models.Payment, error)
	MarkProcessing(ctx context.Context, tx store.Execer, paymentID, paymentKey string) (int64, error)
	MarkConfirmed(ctx context.Context, tx store.Execer, paymentID, method, receiptURL string, approvedAt time.Time) (int64, error)
	MarkFailed(ctx context.Context, tx store.Execer, paymentID string) (int64, error)
	MarkCancelled(ctx context.Context, tx store.Execer, paymentID string) (int64, error)
	ResetForRetry(ctx context.Context, tx store.Execer, paymentID string) (int64, error)
}

type WithdrawalStore interface {
	Create(ctx context.Context, tx store.Execer, input store.WithdrawalInput) error
	GetByID(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error)
	GetForUpdate(ctx context.Context, tx store.Getter, withdrawalID string) (models.WithdrawalRequest, error)
	ListByUser(ctx context.Context, userID string) ([]models.WithdrawalRequest, error)
	MarkProcessing(ctx context.Context, tx store.Execer, withdrawalID string, at time.Time) (int64, error)
	MarkCompleted(ctx context.Context, tx store.Execer, withdrawalID, payoutID string, at time.Time) (int64, error)
	MarkFailed(ctx context.Context, tx store.Execer, withdrawalID, reason string) (int64, error)
}

type EventStore interface {
	Append(ctx context.Context, tx store.Execer, entityType, entityID string, status models.TransactionStatus, description string, errorMessage *string) error
}

// Ledger is the surface the workflows use to move points. Credit and Debit
// compose into the caller's transaction; Publish pushes the committed balance
// to live subscribers and must be called only after commit.
type Ledger interface {
	Credit(ctx context.Context, tx store.Tx, req EntryRequest) (models.PointEntry, error)
	Debit(ctx context.Context, tx store.Tx, req EntryRequest) (models.PointEntry, error)
	Balance(ctx context.Context, userID string) (int64, error)
	Publish(userID string, entry models.PointEntry)
}

type SettlementProvider interface {
	Confirm(ctx context.Context, req provider.ConfirmRequest) (provider.ConfirmResult, error)
	Payout(ctx context.Context, req provider.PayoutRequest) (provider.PayoutResult, error)
}

type Dispatcher interface {
	Enqueue(job worker.Job) bool
}
