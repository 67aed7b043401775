package models

import (
	"errors"
	"time"
)

// ErrIllegalTransition is returned when a Payment or WithdrawalRequest is
// asked to move out of a state that does not permit the transition.
var ErrIllegalTransition = errors.New("illegal state transition")

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusConfirmed  TransactionStatus = "CONFIRMED"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
	StatusCancelled  TransactionStatus = "CANCELLED"
)

type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

type ReferenceType string

const (
	ReferencePayment      ReferenceType = "PAYMENT"
	ReferenceSurveyCreate ReferenceType = "SURVEY_CREATE"
	ReferenceReward       ReferenceType = "REWARD"
	ReferenceWithdrawal   ReferenceType = "WITHDRAWAL"
	ReferenceRefund       ReferenceType = "REFUND"
	ReferenceAdmin        ReferenceType = "ADMIN"
)

type Account struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type PointEntry struct {
	ID            string        `db:"id" json:"id"`
	AccountID     string        `db:"account_id" json:"account_id"`
	Amount        int64         `db:"amount" json:"amount"`
	Direction     Direction     `db:"direction" json:"direction"`
	ReferenceType ReferenceType `db:"reference_type" json:"reference_type"`
	ReferenceID   *string       `db:"reference_id" json:"reference_id,omitempty"`
	PlatformFee   *int64        `db:"platform_fee" json:"platform_fee,omitempty"`
	BalanceAfter  int64         `db:"balance_after" json:"balance_after"`
	Description   string        `db:"description" json:"description"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// Signed returns the entry amount with the sign implied by its direction.
func (e PointEntry) Signed() int64 {
	if e.Direction == DirectionDebit {
		return -e.Amount
	}
	return e.Amount
}

// Payment is one inbound charge attempt against the settlement provider.
// Status may only change through the transition methods below; every other
// field is written once.
type Payment struct {
	ID         string            `db:"id" json:"id"`
	UserID     string            `db:"user_id" json:"user_id"`
	OrderID    string            `db:"order_id" json:"order_id"`
	OrderName  string            `db:"order_name" json:"order_name"`
	Amount     int64             `db:"amount" json:"amount"`
	PaymentKey *string           `db:"payment_key" json:"payment_key,omitempty"`
	Status     TransactionStatus `db:"status" json:"status"`
	Method     *string           `db:"method" json:"method,omitempty"`
	ReceiptURL *string           `db:"receipt_url" json:"receipt_url,omitempty"`
	ApprovedAt *time.Time        `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

func (p *Payment) StartProcessing(paymentKey string) error {
	if p.Status != StatusPending {
		return ErrIllegalTransition
	}
	p.Status = StatusProcessing
	p.PaymentKey = &paymentKey
	return nil
}

func (p *Payment) Confirm(approvedAt time.Time, receiptURL, method string) error {
	if p.Status != StatusProcessing {
		return ErrIllegalTransition
	}
	p.Status = StatusConfirmed
	p.ApprovedAt = &approvedAt
	p.ReceiptURL = &receiptURL
	p.Method = &method
	return nil
}

func (p *Payment) Fail() error {
	if p.Status != StatusProcessing {
		return ErrIllegalTransition
	}
	p.Status = StatusFailed
	return nil
}

func (p *Payment) Cancel() error {
	if p.Status != StatusConfirmed {
		return ErrIllegalTransition
	}
	p.Status = StatusCancelled
	return nil
}

// ResetForRetry rewinds a failed payment so the original request path can
// re-dispatch it. The provider key and approval metadata are cleared; the key
// is restored when processing starts again.
func (p *Payment) ResetForRetry() error {
	if p.Status != StatusFailed {
		return ErrIllegalTransition
	}
	p.Status = StatusPending
	p.PaymentKey = nil
	p.Method = nil
	p.ReceiptURL = nil
	p.ApprovedAt = nil
	return nil
}

// WithdrawalRequest is one outbound payout attempt. The point balance is not
// debited at request time; only a successful completion debits the ledger.
type WithdrawalRequest struct {
	ID            string            `db:"id" json:"id"`
	UserID        string            `db:"user_id" json:"user_id"`
	Amount        int64             `db:"amount" json:"amount"`
	BankCode      string            `db:"bank_code" json:"bank_code"`
	AccountNumber string            `db:"account_number" json:"-"`
	Status        TransactionStatus `db:"status" json:"status"`
	PayoutID      *string           `db:"payout_id" json:"payout_id,omitempty"`
	ProcessedAt   *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	CompletedAt   *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	FailureReason *string           `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

func (w *WithdrawalRequest) StartProcessing(at time.Time) error {
	if w.Status != StatusPending {
		return ErrIllegalTransition
	}
	w.Status = StatusProcessing
	w.ProcessedAt = &at
	return nil
}

func (w *WithdrawalRequest) Complete(payoutID string, at time.Time) error {
	if w.Status != StatusProcessing {
		return ErrIllegalTransition
	}
	w.Status = StatusCompleted
	w.PayoutID = &payoutID
	w.CompletedAt = &at
	return nil
}

func (w *WithdrawalRequest) Fail(reason string) error {
	if w.Status != StatusProcessing {
		return ErrIllegalTransition
	}
	w.Status = StatusFailed
	w.FailureReason = &reason
	return nil
}

type TransactionEvent struct {
	ID           string            `db:"id" json:"id"`
	EntityType   string            `db:"entity_type" json:"entity_type"`
	EntityID     string            `db:"entity_id" json:"entity_id"`
	Status       TransactionStatus `db:"status" json:"status"`
	Description  string            `db:"description" json:"description"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

type SurveyState string

const (
	SurveyActive   SurveyState = "ACTIVE"
	SurveyCanceled SurveyState = "CANCELED"
	SurveyClosed   SurveyState = "CLOSED"
)

// Survey carries the fields the ledger needs from the survey domain. The
// survey lifecycle itself is owned elsewhere; this is a read-only projection.
type Survey struct {
	ID                string
	OwnerID           string
	Title             string
	QuestionCount     int
	MaxResponses      int
	RewardPerResponse int64
	ResponseCount     int
	State             SurveyState
}
