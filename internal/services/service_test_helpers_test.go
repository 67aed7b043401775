package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"pointpay/internal/models"
	"pointpay/internal/provider"
	"pointpay/internal/store"
	"pointpay/internal/websocket"
	"pointpay/internal/worker"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// lockingTxRunner serializes transaction bodies, standing in for the
// serializable isolation the real runner gets from Postgres.
type lockingTxRunner struct {
	mu sync.Mutex
}

func (l *lockingTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(nil)
}

type stubAccountStore struct {
	getByUserFn     func(ctx context.Context, userID string) (models.Account, error)
	getForUpdateFn  func(ctx context.Context, tx store.Getter, userID string) (models.Account, error)
	updateBalanceFn func(ctx context.Context, tx store.Execer, accountID string, balance int64) error
}

func (s stubAccountStore) GetByUser(ctx context.Context, userID string) (models.Account, error) {
	if s.getByUserFn == nil {
		return models.Account{}, nil
	}
	return s.getByUserFn(ctx, userID)
}

func (s stubAccountStore) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Account, error) {
	return s.getForUpdateFn(ctx, tx, userID)
}

func (s stubAccountStore) UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error {
	if s.updateBalanceFn == nil {
		return nil
	}
	return s.updateBalanceFn(ctx, tx, accountID, balance)
}

// memAccountStore holds one account in memory. Safe only under a serializing
// tx runner.
type memAccountStore struct {
	mu      sync.Mutex
	account models.Account
}

func (s *memAccountStore) GetByUser(ctx context.Context, userID string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, nil
}

func (s *memAccountStore) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, nil
}

func (s *memAccountStore) UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account.Balance = balance
	return nil
}

type stubLedgerStore struct {
	insertFn          func(ctx context.Context, tx store.Execer, entry store.PointEntryInput) error
	findByReferenceFn func(ctx context.Context, refType models.ReferenceType, refID string) (models.PointEntry, error)
	listByAccountFn   func(ctx context.Context, accountID string, limit, offset int) ([]models.PointEntry, error)
	sumSignedFn       func(ctx context.Context, accountID string) (int64, error)
}

func (s stubLedgerStore) InsertEntry(ctx context.Context, tx store.Execer, entry store.PointEntryInput) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, tx, entry)
}

func (s stubLedgerStore) FindByReference(ctx context.Context, refType models.ReferenceType, refID string) (models.PointEntry, error) {
	if s.findByReferenceFn == nil {
		return models.PointEntry{}, sql.ErrNoRows
	}
	return s.findByReferenceFn(ctx, refType, refID)
}

func (s stubLedgerStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.PointEntry, error) {
	if s.listByAccountFn == nil {
		return nil, nil
	}
	return s.listByAccountFn(ctx, accountID, limit, offset)
}

func (s stubLedgerStore) SumSignedByAccount(ctx context.Context, accountID string) (int64, error) {
	if s.sumSignedFn == nil {
		return 0, nil
	}
	return s.sumSignedFn(ctx, accountID)
}

type stubPaymentStore struct {
	createFn        func(ctx context.Context, tx store.Execer, input store.PaymentInput) error
	getByIDFn       func(ctx context.Context, paymentID string) (models.Payment, error)
	getByKeyFn      func(ctx context.Context, paymentKey string) (models.Payment, error)
	getForUpdateFn  func(ctx context.Context, tx store.Getter, paymentID string) (models.Payment, error)
	listByUserFn    func(ctx context.Context, userID string) ([]models.Payment, error)
	markProcessing  func(ctx context.Context, tx store.Execer, paymentID, paymentKey string) (int64, error)
	markConfirmed   func(ctx context.Context, tx store.Execer, paymentID, method, receiptURL string, approvedAt time.Time) (int64, error)
	markFailed      func(ctx context.Context, tx store.Execer, paymentID string) (int64, error)
	markCancelled   func(ctx context.Context, tx store.Execer, paymentID string) (int64, error)
	resetForRetryFn func(ctx context.Context, tx store.Execer, paymentID string) (int64, error)
}

func (s stubPaymentStore) Create(ctx context.Context, tx store.Execer, input store.PaymentInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubPaymentStore) GetByID(ctx context.Context, paymentID string) (models.Payment, error) {
	if s.getByIDFn == nil {
		return models.Payment{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, paymentID)
}

func (s stubPaymentStore) GetByKey(ctx context.Context, paymentKey string) (models.Payment, error) {
	if s.getByKeyFn == nil {
		return models.Payment{}, sql.ErrNoRows
	}
	return s.getByKeyFn(ctx, paymentKey)
}

func (s stubPaymentStore) GetForUpdate(ctx context.Context, tx store.Getter, paymentID string) (models.Payment, error) {
	if s.getForUpdateFn == nil {
		return models.Payment{}, sql.ErrNoRows
	}
	return s.getForUpdateFn(ctx, tx, paymentID)
}

func (s stubPaymentStore) ListByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubPaymentStore) MarkProcessing(ctx context.Context, tx store.Execer, paymentID, paymentKey string) (int64, error) {
	if s.markProcessing == nil {
		return 1, nil
	}
	return s.markProcessing(ctx, tx, paymentID, paymentKey)
}

func (s stubPaymentStore) MarkConfirmed(ctx context.Context, tx store.Execer, paymentID, method, receiptURL string, approvedAt time.Time) (int64, error) {
	if s.markConfirmed == nil {
		return 1, nil
	}
	return s.markConfirmed(ctx, tx, paymentID, method, receiptURL, approvedAt)
}

func (s stubPaymentStore) MarkFailed(ctx context.Context, tx store.Execer, paymentID string) (int64, error) {
	if s.markFailed == nil {
		return 1, nil
	}
	return s.markFailed(ctx, tx, paymentID)
}

func (s stubPaymentStore) MarkCancelled(ctx context.Context, tx store.Execer, paymentID string) (int64, error) {
	if s.markCancelled == nil {
		return 1, nil
	}
	return s.markCancelled(ctx, tx, paymentID)
}

func (s stubPaymentStore) ResetForRetry(ctx context.Context, tx store.Execer, paymentID string) (int64, error) {
	if s.resetForRetryFn == nil {
		return 1, nil
	}
	return s.resetForRetryFn(ctx, tx, paymentID)
}

type stubWithdrawalStore struct {
	createFn       func(ctx context.Context, tx store.Execer, input store.WithdrawalInput) error
	getByIDFn      func(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error)
	getForUpdateFn func(ctx context.Context, tx store.Getter, withdrawalID string) (models.WithdrawalRequest, error)
	listByUserFn   func(ctx context.Context, userID string) ([]models.WithdrawalRequest, error)
	markProcessing func(ctx context.Context, tx store.Execer, withdrawalID string, at time.Time) (int64, error)
	markCompleted  func(ctx context.Context, tx store.Execer, withdrawalID, payoutID string, at time.Time) (int64, error)
	markFailed     func(ctx context.Context, tx store.Execer, withdrawalID, reason string) (int64, error)
}

func (s stubWithdrawalStore) Create(ctx context.Context, tx store.Execer, input store.WithdrawalInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubWithdrawalStore) GetByID(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error) {
	if s.getByIDFn == nil {
		return models.WithdrawalRequest{}, sql.ErrNoRows
	}
	return s.getByIDFn(ctx, withdrawalID)
}

func (s stubWithdrawalStore) GetForUpdate(ctx context.Context, tx store.Getter, withdrawalID string) (models.WithdrawalRequest, error) {
	if s.getForUpdateFn == nil {
		return models.WithdrawalRequest{}, sql.ErrNoRows
	}
	return s.getForUpdateFn(ctx, tx, withdrawalID)
}

func (s stubWithdrawalStore) ListByUser(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubWithdrawalStore) MarkProcessing(ctx context.Context, tx store.Execer, withdrawalID string, at time.Time) (int64, error) {
	if s.markProcessing == nil {
		return 1, nil
	}
	return s.markProcessing(ctx, tx, withdrawalID, at)
}

func (s stubWithdrawalStore) MarkCompleted(ctx context.Context, tx store.Execer, withdrawalID, payoutID string, at time.Time) (int64, error) {
	if s.markCompleted == nil {
		return 1, nil
	}
	return s.markCompleted(ctx, tx, withdrawalID, payoutID, at)
}

func (s stubWithdrawalStore) MarkFailed(ctx context.Context, tx store.Execer, withdrawalID, reason string) (int64, error) {
	if s.markFailed == nil {
		return 1, nil
	}
	return s.markFailed(ctx, tx, withdrawalID, reason)
}

// memWithdrawalStore keeps withdrawal rows in memory with the same guarded
// transition contract as the real store.
type memWithdrawalStore struct {
	mu   sync.Mutex
	rows map[string]*models.WithdrawalRequest
}

func newMemWithdrawalStore() *memWithdrawalStore {
	return &memWithdrawalStore{rows: make(map[string]*models.WithdrawalRequest)}
}

func (s *memWithdrawalStore) Create(ctx context.Context, tx store.Execer, input store.WithdrawalInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[input.ID] = &models.WithdrawalRequest{
		ID:            input.ID,
		UserID:        input.UserID,
		Amount:        input.Amount,
		BankCode:      input.BankCode,
		AccountNumber: input.AccountNumber,
		Status:        models.StatusPending,
	}
	return nil
}

func (s *memWithdrawalStore) GetByID(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[withdrawalID]
	if !ok {
		return models.WithdrawalRequest{}, sql.ErrNoRows
	}
	return *row, nil
}

func (s *memWithdrawalStore) GetForUpdate(ctx context.Context, tx store.Getter, withdrawalID string) (models.WithdrawalRequest, error) {
	return s.GetByID(ctx, withdrawalID)
}

func (s *memWithdrawalStore) ListByUser(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	return nil, nil
}

func (s *memWithdrawalStore) MarkProcessing(ctx context.Context, tx store.Execer, withdrawalID string, at time.Time) (int64, error) {
	return s.transition(withdrawalID, models.StatusPending, func(row *models.WithdrawalRequest) {
		row.Status = models.StatusProcessing
		row.ProcessedAt = &at
	})
}

func (s *memWithdrawalStore) MarkCompleted(ctx context.Context, tx store.Execer, withdrawalID, payoutID string, at time.Time) (int64, error) {
	return s.transition(withdrawalID, models.StatusProcessing, func(row *models.WithdrawalRequest) {
		row.Status = models.StatusCompleted
		row.PayoutID = &payoutID
		row.CompletedAt = &at
	})
}

func (s *memWithdrawalStore) MarkFailed(ctx context.Context, tx store.Execer, withdrawalID, reason string) (int64, error) {
	return s.transition(withdrawalID, models.StatusProcessing, func(row *models.WithdrawalRequest) {
		row.Status = models.StatusFailed
		row.FailureReason = &reason
	})
}

func (s *memWithdrawalStore) transition(withdrawalID string, expected models.TransactionStatus, apply func(*models.WithdrawalRequest)) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[withdrawalID]
	if !ok || row.Status != expected {
		return 0, nil
	}
	apply(row)
	return 1, nil
}

type recordedEvent struct {
	entityType   string
	entityID     string
	status       models.TransactionStatus
	description  string
	errorMessage *string
}

type stubEventStore struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *stubEventStore) Append(ctx context.Context, tx store.Execer, entityType, entityID string, status models.TransactionStatus, description string, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{entityType, entityID, status, description, errorMessage})
	return nil
}

func (s *stubEventStore) recorded() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedEvent(nil), s.events...)
}

type stubProvider struct {
	confirmFn func(ctx context.Context, req provider.ConfirmRequest) (provider.ConfirmResult, error)
	payoutFn  func(ctx context.Context, req provider.PayoutRequest) (provider.PayoutResult, error)
}

func (s stubProvider) Confirm(ctx context.Context, req provider.ConfirmRequest) (provider.ConfirmResult, error) {
	if s.confirmFn == nil {
		return provider.ConfirmResult{Method: "CARD", ReceiptURL: "https://receipts.example/1"}, nil
	}
	return s.confirmFn(ctx, req)
}

func (s stubProvider) Payout(ctx context.Context, req provider.PayoutRequest) (provider.PayoutResult, error) {
	if s.payoutFn == nil {
		return provider.PayoutResult{PayoutID: "payout-1"}, nil
	}
	return s.payoutFn(ctx, req)
}

// recordDispatcher captures jobs instead of running them so tests control the
// asynchronous phase.
type recordDispatcher struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (d *recordDispatcher) Enqueue(job worker.Job) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return true
}

func (d *recordDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

type stubHub struct {
	mu    sync.Mutex
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, update)
}

func (s *stubHub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
