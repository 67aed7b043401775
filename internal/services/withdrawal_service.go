package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pointpay/internal/db"
	"pointpay/internal/fees"
	"pointpay/internal/models"
	"pointpay/internal/provider"
	"pointpay/internal/store"
)

// WithdrawalService drives the outbound payout workflow. The balance is not
// debited when the request is accepted; only a successful payout debits the
// ledger, and the atomic debit at completion time is what actually prevents
// overdraft when requests race.
type WithdrawalService struct {
	txRunner    db.TxRunner
	withdrawals WithdrawalStore
	events      EventStore
	ledger      Ledger
	provider    SettlementProvider
	dispatch    Dispatcher
}

func NewWithdrawalService(txRunner db.TxRunner, withdrawals WithdrawalStore, events EventStore, ledger Ledger, settlement SettlementProvider, dispatch Dispatcher) *WithdrawalService {
	return &WithdrawalService{
		txRunner:    txRunner,
		withdrawals: withdrawals,
		events:      events,
		ledger:      ledger,
		provider:    settlement,
		dispatch:    dispatch,
	}
}

type WithdrawalRequest struct {
	UserID        string
	Amount        int64
	BankCode      string
	AccountNumber string
}

func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (models.WithdrawalRequest, error) {
	if req.Amount <= 0 {
		return models.WithdrawalRequest{}, ErrInvalidAmount
	}
	if req.BankCode == "" {
		return models.WithdrawalRequest{}, ErrInvalidBankCode
	}
	if req.AccountNumber == "" {
		return models.WithdrawalRequest{}, ErrInvalidAccount
	}
	if req.Amount-fees.WithdrawalFee() <= 0 {
		return models.WithdrawalRequest{}, ErrFeeExceedsAmount
	}

	// Fast-fail check only. The authoritative balance check happens inside
	// the completion debit, where the account row is locked.
	balance, err := s.ledger.Balance(ctx, req.UserID)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if balance < req.Amount {
		return models.WithdrawalRequest{}, ErrInsufficientPoints
	}

	withdrawal := models.WithdrawalRequest{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		Amount:        req.Amount,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		Status:        models.StatusPending,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.withdrawals.Create(ctx, tx, store.WithdrawalInput{
			ID:            withdrawal.ID,
			UserID:        withdrawal.UserID,
			Amount:        withdrawal.Amount,
			BankCode:      withdrawal.BankCode,
			AccountNumber: withdrawal.AccountNumber,
		}); err != nil {
			return err
		}
		description := fmt.Sprintf("withdrawal requested (amount=%d, fee=%d)", req.Amount, fees.WithdrawalFee())
		return s.events.Append(ctx, tx, store.EventEntityWithdrawal, withdrawal.ID, models.StatusPending, description, nil)
	})
	if err != nil {
		return models.WithdrawalRequest{}, err
	}

	log.Printf("withdrawal requested: withdrawal=%s user=%s amount=%d", withdrawal.ID, req.UserID, req.Amount)
	if !s.dispatch.Enqueue(func(jobCtx context.Context) {
		s.ProcessWithdrawal(jobCtx, withdrawal.ID)
	}) {
		log.Printf("withdrawal processing not scheduled: withdrawal=%s", withdrawal.ID)
	}
	return withdrawal, nil
}

// ProcessWithdrawal is the asynchronous payout phase. Transitions are guarded
// on their predecessor state so a duplicate run stops instead of re-applying;
// any failure after PROCESSING converges to a terminal FAILED state with no
// ledger mutation.
func (s *WithdrawalService) ProcessWithdrawal(ctx context.Context, withdrawalID string) {
	withdrawal, err := s.beginProcessing(ctx, withdrawalID)
	if err != nil {
		log.Printf("withdrawal processing not started: withdrawal=%s err=%v", withdrawalID, err)
		return
	}

	payAmount := withdrawal.Amount - fees.WithdrawalFee()
	if payAmount <= 0 {
		s.failWithdrawal(ctx, withdrawal, ErrFeeExceedsAmount)
		return
	}

	result, err := s.provider.Payout(ctx, provider.PayoutRequest{
		RefID:         withdrawal.ID,
		Amount:        payAmount,
		BankCode:      withdrawal.BankCode,
		AccountNumber: withdrawal.AccountNumber,
	})
	if err != nil {
		s.failWithdrawal(ctx, withdrawal, err)
		return
	}

	entry, err := s.complete(ctx, withdrawal, result.PayoutID, payAmount)
	if err != nil {
		if errors.Is(err, models.ErrIllegalTransition) {
			log.Printf("withdrawal completion skipped, already advanced: withdrawal=%s", withdrawalID)
			return
		}
		s.failWithdrawal(ctx, withdrawal, err)
		return
	}

	s.ledger.Publish(withdrawal.UserID, entry)
	log.Printf("withdrawal completed: withdrawal=%s paid=%d fee=%d balance=%d", withdrawalID, payAmount, fees.WithdrawalFee(), entry.BalanceAfter)
}

func (s *WithdrawalService) beginProcessing(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		loaded, err := s.withdrawals.GetForUpdate(ctx, tx, withdrawalID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := loaded.StartProcessing(now); err != nil {
			return err
		}
		rows, err := s.withdrawals.MarkProcessing(ctx, tx, withdrawalID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrIllegalTransition
		}
		withdrawal = loaded
		return s.events.Append(ctx, tx, store.EventEntityWithdrawal, withdrawalID, models.StatusProcessing, "withdrawal processing started", nil)
	})
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return withdrawal, nil
}

func (s *WithdrawalService) complete(ctx context.Context, withdrawal models.WithdrawalRequest, payoutID string, payAmount int64) (models.PointEntry, error) {
	fee := fees.WithdrawalFee()
	var entry models.PointEntry
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = s.ledger.Debit(ctx, tx, EntryRequest{
			UserID:        withdrawal.UserID,
			Amount:        withdrawal.Amount,
			ReferenceType: models.ReferenceWithdrawal,
			ReferenceID:   &withdrawal.ID,
			PlatformFee:   &fee,
			Description:   describeEntry(models.DirectionDebit, models.ReferenceWithdrawal, entryContext{bankCode: withdrawal.BankCode}),
		})
		if err != nil {
			return err
		}
		rows, err := s.withdrawals.MarkCompleted(ctx, tx, withdrawal.ID, payoutID, time.Now().UTC())
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrIllegalTransition
		}
		description := fmt.Sprintf("withdrawal completed (paid=%d, fee=%d)", payAmount, fee)
		return s.events.Append(ctx, tx, store.EventEntityWithdrawal, withdrawal.ID, models.StatusCompleted, description, nil)
	})
	if err != nil {
		return models.PointEntry{}, err
	}
	return entry, nil
}

func (s *WithdrawalService) failWithdrawal(ctx context.Context, withdrawal models.WithdrawalRequest, cause error) {
	message := cause.Error()
	if errors.Is(cause, provider.ErrTimeout) {
		message = "payout provider timed out"
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.withdrawals.MarkFailed(ctx, tx, withdrawal.ID, message)
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrIllegalTransition
		}
		return s.events.Append(ctx, tx, store.EventEntityWithdrawal, withdrawal.ID, models.StatusFailed, "withdrawal failed", &message)
	})
	if err != nil {
		log.Printf("withdrawal failure not recorded: withdrawal=%s err=%v", withdrawal.ID, err)
		return
	}
	log.Printf("withdrawal failed: withdrawal=%s cause=%v", withdrawal.ID, cause)
}

func (s *WithdrawalService) GetWithdrawal(ctx context.Context, userID, withdrawalID string) (models.WithdrawalRequest, error) {
	withdrawal, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if withdrawal.UserID != userID {
		return models.WithdrawalRequest{}, ErrUnauthorized
	}
	return withdrawal, nil
}

func (s *WithdrawalService) ListWithdrawals(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	return s.withdrawals.ListByUser(ctx, userID)
}
