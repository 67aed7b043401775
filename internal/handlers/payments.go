package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pointpay/internal/middleware"
	"pointpay/internal/models"
	"pointpay/internal/services"
)

type paymentRequest struct {
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	OrderID    string `json:"order_id" validate:"required"`
	OrderName  string `json:"order_name" validate:"required"`
	PaymentKey string `json:"payment_key" validate:"required"`
}

func (h *Handler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payment request")
		return
	}
	payment, err := h.payments.RequestPayment(r.Context(), services.PaymentRequest{
		UserID:     userID,
		Amount:     req.Amount,
		OrderID:    req.OrderID,
		OrderName:  req.OrderName,
		PaymentKey: req.PaymentKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPaymentKey), errors.Is(err, services.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrAlreadyConfirmed), errors.Is(err, services.ErrInProcessing):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, models.ErrIllegalTransition):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "payment request failed")
		}
		return
	}
	respondJSON(w, http.StatusAccepted, payment)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	payment, err := h.payments.GetPayment(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			respondError(w, http.StatusNotFound, "payment not found")
		case errors.Is(err, services.ErrUnauthorized):
			respondError(w, http.StatusForbidden, "payment access denied")
		default:
			respondError(w, http.StatusInternalServerError, "unable to load payment")
		}
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	payments, err := h.payments.ListPayments(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load payments")
		return
	}
	respondJSON(w, http.StatusOK, payments)
}

func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	err := h.payments.CancelPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrIllegalTransition):
			respondError(w, http.StatusConflict, "payment is not cancellable")
		case errors.Is(err, sql.ErrNoRows):
			respondError(w, http.StatusNotFound, "payment not found")
		default:
			respondError(w, http.StatusInternalServerError, "cancel failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "CANCELLED"})
}
