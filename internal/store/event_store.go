package store

import (
	"context"

	"github.com/google/uuid"

	"pointpay/internal/models"
)

const (
	EventEntityPayment    = "payment"
	EventEntityWithdrawal = "withdrawal"
)

// EventStore appends one audit row per state transition of a payment or
// withdrawal. Rows are never updated or deleted.
type EventStore struct {
	db DB
}

func NewEventStore(db DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Append(ctx context.Context, tx Execer, entityType, entityID string, status models.TransactionStatus, description string, errorMessage *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transaction_events (id, entity_type, entity_id, status, description, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), entityType, entityID, status, description, errorMessage)
	return err
}

func (s *EventStore) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.TransactionEvent, error) {
	var rows []models.TransactionEvent
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, entity_type, entity_id, status, description, error_message, created_at
		FROM transaction_events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at
	`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *EventStore) ListRecent(ctx context.Context, limit, offset int) ([]models.TransactionEvent, error) {
	var rows []models.TransactionEvent
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, entity_type, entity_id, status, description, error_message, created_at
		FROM transaction_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
