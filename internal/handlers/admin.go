package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pointpay/internal/models"
	"pointpay/internal/services"
	"pointpay/internal/store"
)

type adminAdjustRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Direction string `json:"direction" validate:"required,oneof=CREDIT DEBIT"`
	Reason    string `json:"reason"`
}

func (h *Handler) AdminAdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req adminAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid adjustment request")
		return
	}
	entry, err := h.ledger.AdminAdjust(r.Context(), services.AdminAdjustRequest{
		UserID:    req.UserID,
		Amount:    req.Amount,
		Direction: models.Direction(req.Direction),
		Reason:    req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInsufficientPoints):
			respondError(w, http.StatusBadRequest, "insufficient_points")
		default:
			respondError(w, http.StatusInternalServerError, "adjustment failed")
		}
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parseInt(query.Get("page"), 1)
	limit := parseInt(query.Get("limit"), 50)
	offset := (page - 1) * limit
	events, err := h.events.ListRecent(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (h *Handler) ListEntityEvents(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	if entityType != store.EventEntityPayment && entityType != store.EventEntityWithdrawal {
		respondError(w, http.StatusBadRequest, "unknown entity type")
		return
	}
	events, err := h.events.ListByEntity(r.Context(), entityType, chi.URLParam(r, "entityID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}
