package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pointpay/internal/models"
	"pointpay/internal/services"
)

// surveyPayload carries the survey projection the escrow operations need. The
// survey backend owns the survey rows and sends this snapshot with each call.
type surveyPayload struct {
	SurveyID          string `json:"survey_id" validate:"required"`
	OwnerID           string `json:"owner_id" validate:"required"`
	Title             string `json:"title"`
	QuestionCount     int    `json:"question_count" validate:"gte=0"`
	MaxResponses      int    `json:"max_responses" validate:"gte=0"`
	RewardPerResponse int64  `json:"reward_per_response" validate:"gte=0"`
	ResponseCount     int    `json:"response_count" validate:"gte=0"`
	State             string `json:"state"`
}

func (p surveyPayload) toSurvey() models.Survey {
	return models.Survey{
		ID:                p.SurveyID,
		OwnerID:           p.OwnerID,
		Title:             p.Title,
		QuestionCount:     p.QuestionCount,
		MaxResponses:      p.MaxResponses,
		RewardPerResponse: p.RewardPerResponse,
		ResponseCount:     p.ResponseCount,
		State:             models.SurveyState(p.State),
	}
}

func (h *Handler) decodeSurvey(w http.ResponseWriter, r *http.Request) (surveyPayload, bool) {
	var payload surveyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return surveyPayload{}, false
	}
	if err := h.validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid survey payload")
		return surveyPayload{}, false
	}
	return payload, true
}

func respondEscrowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInsufficientPoints):
		respondError(w, http.StatusBadRequest, "insufficient_points")
	case errors.Is(err, services.ErrNotSurveyOwner):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNoRegistrationRecord):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNothingToRefund),
		errors.Is(err, services.ErrInvalidSurveyState):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "escrow operation failed")
	}
}

func (h *Handler) ChargeForSurvey(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeSurvey(w, r)
	if !ok {
		return
	}
	entry, err := h.escrow.ChargeForSurveyCreation(r.Context(), payload.OwnerID, payload.toSurvey())
	if err != nil {
		respondEscrowError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

type rewardPayload struct {
	surveyPayload
	ParticipantID string `json:"participant_id" validate:"required"`
}

func (h *Handler) RewardParticipant(w http.ResponseWriter, r *http.Request) {
	var payload rewardPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid reward payload")
		return
	}
	entry, err := h.escrow.RewardParticipant(r.Context(), payload.ParticipantID, payload.toSurvey())
	if err != nil {
		respondEscrowError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) PreviewRefund(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeSurvey(w, r)
	if !ok {
		return
	}
	preview, err := h.escrow.PreviewRefund(r.Context(), payload.OwnerID, payload.toSurvey())
	if err != nil {
		respondEscrowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeSurvey(w, r)
	if !ok {
		return
	}
	entry, err := h.escrow.Refund(r.Context(), payload.OwnerID, payload.toSurvey())
	if err != nil {
		respondEscrowError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}
