package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pointpay/internal/masking"
	"pointpay/internal/middleware"
	"pointpay/internal/models"
	"pointpay/internal/services"
)

type withdrawalRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	BankCode      string `json:"bank_code" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required,min=6"`
}

// withdrawalView is the outward projection. The raw account number never
// leaves the service.
type withdrawalView struct {
	models.WithdrawalRequest
	BankName      string `json:"bank_name"`
	MaskedAccount string `json:"masked_account"`
}

func toWithdrawalView(w models.WithdrawalRequest) withdrawalView {
	return withdrawalView{
		WithdrawalRequest: w,
		BankName:          services.BankName(w.BankCode),
		MaskedAccount:     masking.AccountNumber(w.AccountNumber),
	}
}

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid withdrawal request")
		return
	}
	withdrawal, err := h.withdrawals.RequestWithdrawal(r.Context(), services.WithdrawalRequest{
		UserID:        userID,
		Amount:        req.Amount,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount),
			errors.Is(err, services.ErrInvalidBankCode),
			errors.Is(err, services.ErrInvalidAccount),
			errors.Is(err, services.ErrFeeExceedsAmount):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInsufficientPoints):
			respondError(w, http.StatusBadRequest, "insufficient_points")
		default:
			respondError(w, http.StatusInternalServerError, "withdrawal request failed")
		}
		return
	}
	respondJSON(w, http.StatusAccepted, toWithdrawalView(withdrawal))
}

func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	withdrawal, err := h.withdrawals.GetWithdrawal(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			respondError(w, http.StatusNotFound, "withdrawal not found")
		case errors.Is(err, services.ErrUnauthorized):
			respondError(w, http.StatusForbidden, "withdrawal access denied")
		default:
			respondError(w, http.StatusInternalServerError, "unable to load withdrawal")
		}
		return
	}
	respondJSON(w, http.StatusOK, toWithdrawalView(withdrawal))
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	withdrawals, err := h.withdrawals.ListWithdrawals(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load withdrawals")
		return
	}
	views := make([]withdrawalView, 0, len(withdrawals))
	for _, row := range withdrawals {
		views = append(views, toWithdrawalView(row))
	}
	respondJSON(w, http.StatusOK, views)
}
