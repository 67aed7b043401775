package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pointpay/internal/config"
	"pointpay/internal/db"
	"pointpay/internal/handlers"
	"pointpay/internal/provider"
	"pointpay/internal/services"
	"pointpay/internal/store"
	"pointpay/internal/websocket"
	"pointpay/internal/worker"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	accounts := store.NewAccountStore(database)
	entries := store.NewLedgerStore(database)
	payments := store.NewPaymentStore(database)
	withdrawals := store.NewWithdrawalStore(database)
	events := store.NewEventStore(database)
	admin := store.NewAdminStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	settlement := provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderSecretKey, cfg.ProviderTimeout)
	dispatcher := worker.NewDispatcher(cfg.WorkerCount, cfg.WorkerQueueSize)

	ledger := services.NewLedgerService(txRunner, accounts, entries, hub)
	paymentSvc := services.NewPaymentService(txRunner, payments, events, ledger, settlement, dispatcher)
	withdrawalSvc := services.NewWithdrawalService(txRunner, withdrawals, events, ledger, settlement, dispatcher)
	escrow := services.NewEscrowService(txRunner, ledger, entries)

	handler := handlers.New(cfg, txRunner, users, accounts, admin, events, ledger, paymentSvc, withdrawalSvc, escrow, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("pointpay API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
	// Let in-flight confirmation and payout jobs finish before exiting.
	dispatcher.Stop()
}
