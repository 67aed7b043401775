package store

import (
	"context"

	"pointpay/internal/models"
)

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

type PointEntryInput struct {
	ID            string
	AccountID     string
	Amount        int64
	Direction     models.Direction
	ReferenceType models.ReferenceType
	ReferenceID   *string
	PlatformFee   *int64
	BalanceAfter  int64
	Description   string
}

func (s *LedgerStore) InsertEntry(ctx context.Context, tx Execer, entry PointEntryInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO point_entries (id, account_id, amount, direction, reference_type, reference_id, platform_fee, balance_after, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.AccountID, entry.Amount, entry.Direction, entry.ReferenceType,
		entry.ReferenceID, entry.PlatformFee, entry.BalanceAfter, entry.Description)
	return err
}

// FindByReference locates the single entry written for a reference, used to
// recover the original escrow charge when computing a refund.
func (s *LedgerStore) FindByReference(ctx context.Context, refType models.ReferenceType, refID string) (models.PointEntry, error) {
	var row models.PointEntry
	err := s.db.GetContext(ctx, &row, `
		SELECT id, account_id, amount, direction, reference_type, reference_id, platform_fee, balance_after, description, created_at
		FROM point_entries
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY created_at
		LIMIT 1
	`, refType, refID)
	if err != nil {
		return models.PointEntry{}, err
	}
	return row, nil
}

func (s *LedgerStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.PointEntry, error) {
	var rows []models.PointEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, amount, direction, reference_type, reference_id, platform_fee, balance_after, description, created_at
		FROM point_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SumSignedByAccount replays the ledger for one account. The result must
// always equal the stored balance; a difference means the ledger and the
// account row diverged.
func (s *LedgerStore) SumSignedByAccount(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE direction WHEN 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM point_entries
		WHERE account_id = $1
	`, accountID)
	return sum, err
}
