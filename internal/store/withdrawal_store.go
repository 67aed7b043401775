package store

import (
	"context"
	"time"

	"pointpay/internal/models"
)

type WithdrawalStore struct {
	db DB
}

func NewWithdrawalStore(db DB) *WithdrawalStore {
	return &WithdrawalStore{db: db}
}

type WithdrawalInput struct {
	ID            string
	UserID        string
	Amount        int64
	BankCode      string
	AccountNumber string
}

const withdrawalColumns = `id, user_id, amount, bank_code, account_number, status, payout_id, processed_at, completed_at, failure_reason, created_at, updated_at`

func (s *WithdrawalStore) Create(ctx context.Context, tx Execer, input WithdrawalInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawal_requests (id, user_id, amount, bank_code, account_number, status)
		VALUES ($1, $2, $3, $4, $5, 'PENDING')
	`, input.ID, input.UserID, input.Amount, input.BankCode, input.AccountNumber)
	return err
}

func (s *WithdrawalStore) GetByID(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error) {
	var row models.WithdrawalRequest
	err := s.db.GetContext(ctx, &row, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE id = $1
	`, withdrawalID)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return row, nil
}

func (s *WithdrawalStore) GetForUpdate(ctx context.Context, tx Getter, withdrawalID string) (models.WithdrawalRequest, error) {
	var row models.WithdrawalRequest
	err := tx.GetContext(ctx, &row, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE id = $1
		FOR UPDATE
	`, withdrawalID)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return row, nil
}

func (s *WithdrawalStore) ListByUser(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	var rows []models.WithdrawalRequest
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+withdrawalColumns+`
		FROM withdrawal_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Guarded transitions, same contract as PaymentStore: zero rows affected
// means the request was not in the expected predecessor state.

func (s *WithdrawalStore) MarkProcessing(ctx context.Context, tx Execer, withdrawalID string, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = 'PROCESSING', processed_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'PENDING'
	`, at, withdrawalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WithdrawalStore) MarkCompleted(ctx context.Context, tx Execer, withdrawalID, payoutID string, at time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = 'COMPLETED', payout_id = $1, completed_at = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'PROCESSING'
	`, payoutID, at, withdrawalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WithdrawalStore) MarkFailed(ctx context.Context, tx Execer, withdrawalID, reason string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = 'FAILED', failure_reason = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'PROCESSING'
	`, reason, withdrawalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
