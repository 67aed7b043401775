package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	playvalidator "github.com/go-playground/validator/v10"

	"pointpay/internal/config"
	"pointpay/internal/db"
	"pointpay/internal/middleware"
	"pointpay/internal/websocket"
)

type Handler struct {
	cfg         config.Config
	txRunner    db.TxRunner
	users       UserStore
	accounts    AccountStore
	admin       AdminStore
	events      EventStore
	ledger      LedgerService
	payments    PaymentService
	withdrawals WithdrawalService
	escrow      EscrowService
	hub         *websocket.Hub
	validate    *playvalidator.Validate
}

func New(cfg config.Config, txRunner db.TxRunner, users UserStore, accounts AccountStore, admin AdminStore, events EventStore, ledger LedgerService, payments PaymentService, withdrawals WithdrawalService, escrow EscrowService, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:         cfg,
		txRunner:    txRunner,
		users:       users,
		accounts:    accounts,
		admin:       admin,
		events:      events,
		ledger:      ledger,
		payments:    payments,
		withdrawals: withdrawals,
		escrow:      escrow,
		hub:         hub,
		validate:    playvalidator.New(),
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Post("/payments", h.RequestPayment)
		r.Get("/payments", h.ListPayments)
		r.Get("/payments/{id}", h.GetPayment)
		r.Post("/withdrawals", h.RequestWithdrawal)
		r.Get("/withdrawals", h.ListWithdrawals)
		r.Get("/withdrawals/{id}", h.GetWithdrawal)
		r.Get("/points/balance", h.GetBalance)
		r.Get("/points/history", h.GetHistory)
		r.Get("/points/self-check", h.SelfCheck)
	})

	router.Get("/ws/balances", h.WSBalances)

	// Escrow operations are called by the survey backend, not end users.
	router.Route("/internal/surveys", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAdmin(h.admin))
		r.Post("/charge", h.ChargeForSurvey)
		r.Post("/reward", h.RewardParticipant)
		r.Post("/refund/preview", h.PreviewRefund)
		r.Post("/refund", h.Refund)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAdmin(h.admin))
		r.Post("/points/adjust", h.AdminAdjustPoints)
		r.Post("/payments/{id}/cancel", h.CancelPayment)
		r.Get("/events", h.ListEvents)
		r.Get("/events/{entityType}/{entityID}", h.ListEntityEvents)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
