package services

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pointpay/internal/db"
	"pointpay/internal/models"
	"pointpay/internal/store"
	"pointpay/internal/websocket"
)

// LedgerService owns every mutation of a user's point balance. A mutation is
// one locked read-modify-write of the account row plus exactly one appended
// point entry; the two writes share a transaction and commit or roll back
// together.
type LedgerService struct {
	txRunner db.TxRunner
	accounts AccountStore
	ledger   LedgerStore
	hub      BalanceHub
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

func NewLedgerService(txRunner db.TxRunner, accounts AccountStore, ledger LedgerStore, hub BalanceHub) *LedgerService {
	return &LedgerService{
		txRunner: txRunner,
		accounts: accounts,
		ledger:   ledger,
		hub:      hub,
	}
}

type EntryRequest struct {
	UserID        string
	Amount        int64
	ReferenceType models.ReferenceType
	ReferenceID   *string
	PlatformFee   *int64
	Description   string
}

func (s *LedgerService) Credit(ctx context.Context, tx store.Tx, req EntryRequest) (models.PointEntry, error) {
	return s.apply(ctx, tx, models.DirectionCredit, req)
}

func (s *LedgerService) Debit(ctx context.Context, tx store.Tx, req EntryRequest) (models.PointEntry, error) {
	return s.apply(ctx, tx, models.DirectionDebit, req)
}

func (s *LedgerService) apply(ctx context.Context, tx store.Tx, direction models.Direction, req EntryRequest) (models.PointEntry, error) {
	if req.Amount <= 0 {
		return models.PointEntry{}, ErrInvalidAmount
	}
	account, err := s.accounts.GetForUpdate(ctx, tx, req.UserID)
	if err != nil {
		return models.PointEntry{}, err
	}
	newBalance := account.Balance + req.Amount
	if direction == models.DirectionDebit {
		if req.Amount > account.Balance {
			return models.PointEntry{}, ErrInsufficientPoints
		}
		newBalance = account.Balance - req.Amount
	}
	if err := s.accounts.UpdateBalance(ctx, tx, account.ID, newBalance); err != nil {
		return models.PointEntry{}, err
	}
	entry := models.PointEntry{
		ID:            uuid.NewString(),
		AccountID:     account.ID,
		Amount:        req.Amount,
		Direction:     direction,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		PlatformFee:   req.PlatformFee,
		BalanceAfter:  newBalance,
		Description:   req.Description,
	}
	if err := s.ledger.InsertEntry(ctx, tx, store.PointEntryInput{
		ID:            entry.ID,
		AccountID:     entry.AccountID,
		Amount:        entry.Amount,
		Direction:     entry.Direction,
		ReferenceType: entry.ReferenceType,
		ReferenceID:   entry.ReferenceID,
		PlatformFee:   entry.PlatformFee,
		BalanceAfter:  entry.BalanceAfter,
		Description:   entry.Description,
	}); err != nil {
		return models.PointEntry{}, err
	}
	return entry, nil
}

// Publish pushes a committed balance to the owner's live subscribers. Callers
// must invoke it only after the mutating transaction has committed.
func (s *LedgerService) Publish(userID string, entry models.PointEntry) {
	s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
		AccountID: entry.AccountID,
		Balance:   entry.BalanceAfter,
	})
}

func (s *LedgerService) Balance(ctx context.Context, userID string) (int64, error) {
	account, err := s.accounts.GetByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (s *LedgerService) History(ctx context.Context, userID string, limit, offset int) ([]models.PointEntry, error) {
	account, err := s.accounts.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ledger.ListByAccount(ctx, account.ID, limit, offset)
}

// VerifyAccount replays the ledger against the stored balance.
func (s *LedgerService) VerifyAccount(ctx context.Context, userID string) (stored, replayed int64, err error) {
	account, err := s.accounts.GetByUser(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	sum, err := s.ledger.SumSignedByAccount(ctx, account.ID)
	if err != nil {
		return 0, 0, err
	}
	return account.Balance, sum, nil
}

type AdminAdjustRequest struct {
	UserID    string
	Amount    int64
	Direction models.Direction
	Reason    string
}

// AdminAdjust credits or debits a user outside the normal workflows. The
// entry is tagged ADMIN so the trail shows who the money came from; debits
// still respect the no-overdraft invariant.
func (s *LedgerService) AdminAdjust(ctx context.Context, req AdminAdjustRequest) (models.PointEntry, error) {
	if req.Amount <= 0 {
		return models.PointEntry{}, ErrInvalidAmount
	}
	var entry models.PointEntry
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var applyErr error
		entryReq := EntryRequest{
			UserID:        req.UserID,
			Amount:        req.Amount,
			ReferenceType: models.ReferenceAdmin,
			Description:   adminDescription(req.Reason),
		}
		if req.Direction == models.DirectionDebit {
			entry, applyErr = s.Debit(ctx, tx, entryReq)
		} else {
			entry, applyErr = s.Credit(ctx, tx, entryReq)
		}
		return applyErr
	})
	if err != nil {
		return models.PointEntry{}, err
	}
	log.Printf("admin point adjustment: user=%s direction=%s amount=%d balance=%d", req.UserID, entry.Direction, entry.Amount, entry.BalanceAfter)
	s.Publish(req.UserID, entry)
	return entry, nil
}
