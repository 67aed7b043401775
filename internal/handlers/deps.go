package handlers

import (
	"context"

	"pointpay/internal/models"
	"pointpay/internal/services"
	"pointpay/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (store.User, error)
	GetByID(ctx context.Context, userID string) (store.User, error)
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, id, userID string) error
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type EventStore interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.TransactionEvent, error)
	ListRecent(ctx context.Context, limit, offset int) ([]models.TransactionEvent, error)
}

type PaymentService interface {
	RequestPayment(ctx context.Context, req services.PaymentRequest) (models.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) error
	GetPayment(ctx context.Context, userID, paymentID string) (models.Payment, error)
	ListPayments(ctx context.Context, userID string) ([]models.Payment, error)
}

type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, req services.WithdrawalRequest) (models.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, userID, withdrawalID string) (models.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, userID string) ([]models.WithdrawalRequest, error)
}

type LedgerService interface {
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit, offset int) ([]models.PointEntry, error)
	VerifyAccount(ctx context.Context, userID string) (stored, replayed int64, err error)
	AdminAdjust(ctx context.Context, req services.AdminAdjustRequest) (models.PointEntry, error)
}

type EscrowService interface {
	ChargeForSurveyCreation(ctx context.Context, userID string, survey models.Survey) (models.PointEntry, error)
	RewardParticipant(ctx context.Context, userID string, survey models.Survey) (models.PointEntry, error)
	PreviewRefund(ctx context.Context, userID string, survey models.Survey) (services.RefundPreview, error)
	Refund(ctx context.Context, userID string, survey models.Survey) (models.PointEntry, error)
}
