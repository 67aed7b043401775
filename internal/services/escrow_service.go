package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"pointpay/internal/db"
	"pointpay/internal/fees"
	"pointpay/internal/models"
)

// EscrowService handles the "pay to create, earn to participate" money
// movement: the survey creator pays the full participant payout plus a
// platform fee up front, participants earn rewards from that escrow, and
// whatever was not paid out comes back when the survey ends.
type EscrowService struct {
	txRunner db.TxRunner
	ledger   Ledger
	entries  LedgerStore
}

func NewEscrowService(txRunner db.TxRunner, ledger Ledger, entries LedgerStore) *EscrowService {
	return &EscrowService{
		txRunner: txRunner,
		ledger:   ledger,
		entries:  entries,
	}
}

func (s *EscrowService) ChargeForSurveyCreation(ctx context.Context, userID string, survey models.Survey) (models.PointEntry, error) {
	total, platformFee := fees.SurveyCreationCost(survey.QuestionCount, survey.MaxResponses, survey.RewardPerResponse)
	if total <= 0 {
		return models.PointEntry{}, ErrInvalidAmount
	}
	var entry models.PointEntry
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var debitErr error
		entry, debitErr = s.ledger.Debit(ctx, tx, EntryRequest{
			UserID:        userID,
			Amount:        total,
			ReferenceType: models.ReferenceSurveyCreate,
			ReferenceID:   &survey.ID,
			PlatformFee:   &platformFee,
			Description:   describeEntry(models.DirectionDebit, models.ReferenceSurveyCreate, entryContext{surveyTitle: survey.Title}),
		})
		return debitErr
	})
	if err != nil {
		return models.PointEntry{}, err
	}
	log.Printf("survey registration charged: survey=%s user=%s total=%d fee=%d", survey.ID, userID, total, platformFee)
	s.ledger.Publish(userID, entry)
	return entry, nil
}

func (s *EscrowService) RewardParticipant(ctx context.Context, userID string, survey models.Survey) (models.PointEntry, error) {
	if survey.RewardPerResponse <= 0 {
		return models.PointEntry{}, ErrInvalidAmount
	}
	var entry models.PointEntry
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var creditErr error
		entry, creditErr = s.ledger.Credit(ctx, tx, EntryRequest{
			UserID:        userID,
			Amount:        survey.RewardPerResponse,
			ReferenceType: models.ReferenceReward,
			ReferenceID:   &survey.ID,
			Description:   describeEntry(models.DirectionCredit, models.ReferenceReward, entryContext{surveyTitle: survey.Title}),
		})
		return creditErr
	})
	if err != nil {
		return models.PointEntry{}, err
	}
	s.ledger.Publish(userID, entry)
	return entry, nil
}

type RefundPreview struct {
	SurveyID         string `json:"survey_id"`
	TotalPaid        int64  `json:"total_paid"`
	PlatformFee      int64  `json:"platform_fee"`
	ParticipantCount int    `json:"participant_count"`
	RewardPaid       int64  `json:"reward_paid"`
	RefundAmount     int64  `json:"refund_amount"`
}

// PreviewRefund computes the refund without touching the ledger. The amount
// is clamped to zero for display.
func (s *EscrowService) PreviewRefund(ctx context.Context, userID string, survey models.Survey) (RefundPreview, error) {
	preview, err := s.computeRefund(ctx, userID, survey)
	if err != nil {
		return RefundPreview{}, err
	}
	if preview.RefundAmount < 0 {
		preview.RefundAmount = 0
	}
	return preview, nil
}

// Refund returns the unspent escrow to the survey creator. The reason tag
// depends on how the survey ended: cancelled outright, or closed before
// filling every response slot.
func (s *EscrowService) Refund(ctx context.Context, userID string, survey models.Survey) (models.PointEntry, error) {
	var reason RefundReason
	switch survey.State {
	case models.SurveyCanceled:
		reason = RefundCanceled
	case models.SurveyClosed:
		reason = RefundClosedEarly
	default:
		return models.PointEntry{}, ErrInvalidSurveyState
	}

	preview, err := s.computeRefund(ctx, userID, survey)
	if err != nil {
		return models.PointEntry{}, err
	}
	if preview.RefundAmount <= 0 {
		return models.PointEntry{}, ErrNothingToRefund
	}

	description := fmt.Sprintf("%s (fee=%d, participants=%d, refunded=%d)",
		describeEntry(models.DirectionCredit, models.ReferenceRefund, entryContext{surveyTitle: survey.Title, refundReason: reason}),
		preview.PlatformFee, preview.ParticipantCount, preview.RefundAmount)

	var entry models.PointEntry
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var creditErr error
		entry, creditErr = s.ledger.Credit(ctx, tx, EntryRequest{
			UserID:        userID,
			Amount:        preview.RefundAmount,
			ReferenceType: models.ReferenceRefund,
			ReferenceID:   &survey.ID,
			Description:   description,
		})
		return creditErr
	})
	if err != nil {
		return models.PointEntry{}, err
	}
	log.Printf("survey refund: survey=%s user=%s reason=%s refunded=%d", survey.ID, userID, reason, preview.RefundAmount)
	s.ledger.Publish(userID, entry)
	return entry, nil
}

func (s *EscrowService) computeRefund(ctx context.Context, userID string, survey models.Survey) (RefundPreview, error) {
	if userID != survey.OwnerID {
		return RefundPreview{}, ErrNotSurveyOwner
	}

	record, err := s.entries.FindByReference(ctx, models.ReferenceSurveyCreate, survey.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefundPreview{}, ErrNoRegistrationRecord
		}
		return RefundPreview{}, err
	}

	var platformFee int64
	if record.PlatformFee != nil {
		platformFee = *record.PlatformFee
	}
	rewardPaid := int64(survey.ResponseCount) * survey.RewardPerResponse
	return RefundPreview{
		SurveyID:         survey.ID,
		TotalPaid:        record.Amount,
		PlatformFee:      platformFee,
		ParticipantCount: survey.ResponseCount,
		RewardPaid:       rewardPaid,
		RefundAmount:     record.Amount - platformFee - rewardPaid,
	}, nil
}
