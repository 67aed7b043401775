package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pointpay/internal/db"
	"pointpay/internal/fees"
	"pointpay/internal/models"
	"pointpay/internal/provider"
	"pointpay/internal/store"
)

// PaymentService drives the inbound charge workflow. The request path is
// synchronous and commits a PENDING payment; confirmation with the settlement
// provider runs on the worker pool and re-enters the state machine there.
type PaymentService struct {
	txRunner db.TxRunner
	payments PaymentStore
	events   EventStore
	ledger   Ledger
	provider SettlementProvider
	dispatch Dispatcher
}

func NewPaymentService(txRunner db.TxRunner, payments PaymentStore, events EventStore, ledger Ledger, settlement SettlementProvider, dispatch Dispatcher) *PaymentService {
	return &PaymentService{
		txRunner: txRunner,
		payments: payments,
		events:   events,
		ledger:   ledger,
		provider: settlement,
		dispatch: dispatch,
	}
}

type PaymentRequest struct {
	UserID     string
	Amount     int64
	OrderID    string
	OrderName  string
	PaymentKey string
}

// RequestPayment validates and registers a charge attempt, then schedules the
// asynchronous confirmation phase. The payment key is the provider-side
// idempotency key: a key already confirmed or in flight is rejected, and a
// key that previously failed resets the existing row instead of creating a
// second one.
func (s *PaymentService) RequestPayment(ctx context.Context, req PaymentRequest) (models.Payment, error) {
	if req.PaymentKey == "" {
		return models.Payment{}, ErrInvalidPaymentKey
	}
	if req.Amount <= fees.PaymentFee() {
		return models.Payment{}, ErrInvalidAmount
	}

	existing, err := s.payments.GetByKey(ctx, req.PaymentKey)
	if err == nil {
		switch existing.Status {
		case models.StatusConfirmed:
			return models.Payment{}, ErrAlreadyConfirmed
		case models.StatusProcessing, models.StatusPending:
			return models.Payment{}, ErrInProcessing
		case models.StatusFailed:
			return s.retryPayment(ctx, existing, req.PaymentKey)
		default:
			return models.Payment{}, models.ErrIllegalTransition
		}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Payment{}, err
	}

	payment := models.Payment{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		OrderID:    req.OrderID,
		OrderName:  req.OrderName,
		Amount:     req.Amount,
		PaymentKey: &req.PaymentKey,
		Status:     models.StatusPending,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.payments.Create(ctx, tx, storePaymentInput(payment, req.PaymentKey)); err != nil {
			return err
		}
		description := fmt.Sprintf("payment requested (amount=%d, fee=%d)", req.Amount, fees.PaymentFee())
		return s.events.Append(ctx, tx, store.EventEntityPayment, payment.ID, models.StatusPending, description, nil)
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.Payment{}, ErrInProcessing
		}
		return models.Payment{}, err
	}

	log.Printf("payment requested: payment=%s user=%s amount=%d", payment.ID, req.UserID, req.Amount)
	s.enqueueConfirmation(payment.ID, req.PaymentKey)
	return payment, nil
}

func (s *PaymentService) retryPayment(ctx context.Context, existing models.Payment, paymentKey string) (models.Payment, error) {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.payments.ResetForRetry(ctx, tx, existing.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrIllegalTransition
		}
		return s.events.Append(ctx, tx, store.EventEntityPayment, existing.ID, models.StatusPending, "payment retry requested", nil)
	})
	if err != nil {
		return models.Payment{}, err
	}

	log.Printf("payment retry: payment=%s", existing.ID)
	s.enqueueConfirmation(existing.ID, paymentKey)

	retried := existing
	if resetErr := retried.ResetForRetry(); resetErr != nil {
		return models.Payment{}, resetErr
	}
	return retried, nil
}

func (s *PaymentService) enqueueConfirmation(paymentID, paymentKey string) {
	if !s.dispatch.Enqueue(func(ctx context.Context) {
		s.ProcessPayment(ctx, paymentID, paymentKey)
	}) {
		log.Printf("payment confirmation not scheduled: payment=%s", paymentID)
	}
}

// ProcessPayment is the asynchronous confirmation phase. It is tolerant of
// at-least-once delivery: every transition is guarded on its predecessor
// state, so a duplicate run finds the work already done and stops without
// touching the ledger.
func (s *PaymentService) ProcessPayment(ctx context.Context, paymentID, paymentKey string) {
	payment, err := s.beginProcessing(ctx, paymentID, paymentKey)
	if err != nil {
		log.Printf("payment processing not started: payment=%s err=%v", paymentID, err)
		return
	}

	result, err := s.provider.Confirm(ctx, provider.ConfirmRequest{
		PaymentKey: paymentKey,
		OrderID:    payment.OrderID,
		OrderName:  payment.OrderName,
		Amount:     payment.Amount,
	})
	if err != nil {
		s.failPayment(ctx, payment, err)
		return
	}

	entry, err := s.confirmPayment(ctx, payment, result)
	if err != nil {
		if errors.Is(err, models.ErrIllegalTransition) {
			log.Printf("payment confirmation skipped, already advanced: payment=%s", paymentID)
			return
		}
		s.failPayment(ctx, payment, err)
		return
	}

	s.ledger.Publish(payment.UserID, entry)
	log.Printf("payment confirmed: payment=%s credited=%d balance=%d", paymentID, entry.Amount, entry.BalanceAfter)
}

func (s *PaymentService) beginProcessing(ctx context.Context, paymentID, paymentKey string) (models.Payment, error) {
	var payment models.Payment
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		loaded, err := s.payments.GetForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if err := loaded.StartProcessing(paymentKey); err != nil {
			return err
		}
		rows, err := s.payments.MarkProcessing(ctx, tx, paymentID, paymentKey)
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrIllegalTransition
		}
		payment = loaded
		return s.events.Append(ctx, tx, store.EventEntityPayment, paymentID, models.StatusProcessing, "payment processing started", nil)
	})
	if err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

func (s *PaymentService) confirmPayment(ctx context.Context, payment models.Payment, result provider.ConfirmResult) (models.PointEntry, error) {
	creditAmount := payment.Amount - fees.PaymentFee()
	fee := fees.PaymentFee()
	var entry models.PointEntry
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.payments.MarkConfirmed(ctx, tx, payment.ID, result.Method, result.ReceiptURL, time.Now().UTC())
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrIllegalTransition
		}
		entry, err = s.ledger.Credit(ctx, tx, EntryRequest{
			UserID:        payment.UserID,
			Amount:        creditAmount,
			ReferenceType: models.ReferencePayment,
			ReferenceID:   &payment.ID,
			PlatformFee:   &fee,
			Description:   describeEntry(models.DirectionCredit, models.ReferencePayment, entryContext{}),
		})
		if err != nil {
			return err
		}
		description := fmt.Sprintf("payment approved (credited=%d points)", creditAmount)
		return s.events.Append(ctx, tx, store.EventEntityPayment, payment.ID, models.StatusConfirmed, description, nil)
	})
	if err != nil {
		return models.PointEntry{}, err
	}
	return entry, nil
}

// failPayment converts any confirmation-phase error into a terminal FAILED
// state plus an audit event carrying the raw error. Nothing is credited.
func (s *PaymentService) failPayment(ctx context.Context, payment models.Payment, cause error) {
	message := cause.Error()
	if errors.Is(cause, provider.ErrTimeout) {
		message = "settlement provider timed out"
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.payments.MarkFailed(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrIllegalTransition
		}
		return s.events.Append(ctx, tx, store.EventEntityPayment, payment.ID, models.StatusFailed, "payment failed", &message)
	})
	if err != nil {
		log.Printf("payment failure not recorded: payment=%s err=%v", payment.ID, err)
		return
	}
	log.Printf("payment failed: payment=%s cause=%v", payment.ID, cause)
}

// CancelPayment moves a confirmed payment to its administrative terminal
// state. No refund flows through the ledger here.
func (s *PaymentService) CancelPayment(ctx context.Context, paymentID string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.payments.MarkCancelled(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrIllegalTransition
		}
		return s.events.Append(ctx, tx, store.EventEntityPayment, paymentID, models.StatusCancelled, "payment cancelled", nil)
	})
}

func (s *PaymentService) GetPayment(ctx context.Context, userID, paymentID string) (models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return models.Payment{}, err
	}
	if payment.UserID != userID {
		return models.Payment{}, ErrUnauthorized
	}
	return payment, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, userID string) ([]models.Payment, error) {
	return s.payments.ListByUser(ctx, userID)
}

func storePaymentInput(p models.Payment, key string) store.PaymentInput {
	return store.PaymentInput{
		ID:         p.ID,
		UserID:     p.UserID,
		OrderID:    p.OrderID,
		OrderName:  p.OrderName,
		Amount:     p.Amount,
		PaymentKey: key,
	}
}
