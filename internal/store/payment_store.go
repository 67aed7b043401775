package store

import (
	"context"
	"time"

	"pointpay/internal/models"
)

type PaymentStore struct {
	db DB
}

func NewPaymentStore(db DB) *PaymentStore {
	return &PaymentStore{db: db}
}

type PaymentInput struct {
	ID         string
	UserID     string
	OrderID    string
	OrderName  string
	Amount     int64
	PaymentKey string
}

const paymentColumns = `id, user_id, order_id, order_name, amount, payment_key, status, method, receipt_url, approved_at, created_at, updated_at`

func (s *PaymentStore) Create(ctx context.Context, tx Execer, input PaymentInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, order_id, order_name, amount, payment_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING')
	`, input.ID, input.UserID, input.OrderID, input.OrderName, input.Amount, input.PaymentKey)
	return err
}

func (s *PaymentStore) GetByID(ctx context.Context, paymentID string) (models.Payment, error) {
	var row models.Payment
	err := s.db.GetContext(ctx, &row, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1
	`, paymentID)
	if err != nil {
		return models.Payment{}, err
	}
	return row, nil
}

func (s *PaymentStore) GetByKey(ctx context.Context, paymentKey string) (models.Payment, error) {
	var row models.Payment
	err := s.db.GetContext(ctx, &row, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE payment_key = $1
	`, paymentKey)
	if err != nil {
		return models.Payment{}, err
	}
	return row, nil
}

func (s *PaymentStore) GetForUpdate(ctx context.Context, tx Getter, paymentID string) (models.Payment, error) {
	var row models.Payment
	err := tx.GetContext(ctx, &row, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`, paymentID)
	if err != nil {
		return models.Payment{}, err
	}
	return row, nil
}

func (s *PaymentStore) ListByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	var rows []models.Payment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// The Mark* methods guard the expected predecessor status in SQL and report
// the number of rows moved. Zero rows means another worker or an out-of-order
// replay already advanced the payment; callers map that to an illegal
// transition without touching the ledger.

func (s *PaymentStore) MarkProcessing(ctx context.Context, tx Execer, paymentID, paymentKey string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'PROCESSING', payment_key = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'PENDING'
	`, paymentKey, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PaymentStore) MarkConfirmed(ctx context.Context, tx Execer, paymentID, method, receiptURL string, approvedAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'CONFIRMED', method = $1, receipt_url = $2, approved_at = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'PROCESSING'
	`, method, receiptURL, approvedAt, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PaymentStore) MarkFailed(ctx context.Context, tx Execer, paymentID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'FAILED', updated_at = NOW()
		WHERE id = $1 AND status = 'PROCESSING'
	`, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PaymentStore) MarkCancelled(ctx context.Context, tx Execer, paymentID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status = 'CONFIRMED'
	`, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PaymentStore) ResetForRetry(ctx context.Context, tx Execer, paymentID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'PENDING', payment_key = NULL, method = NULL, receipt_url = NULL, approved_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'FAILED'
	`, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
