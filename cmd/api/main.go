package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"busticket/internal/api"
	"busticket/internal/application/factories/infrastructure"
	"busticket/internal/config"
	"busticket/internal/credential"
	"busticket/internal/infrastructure/postgres"
	"busticket/internal/infrastructure/razorpay"
	"busticket/internal/notify"
	"busticket/internal/usecase"
)

const producerName = "ticket-api"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	encoder, err := credential.NewEncoder(cfg.Credential.BaseURL, cfg.Credential.Issuer, cfg.Credential.Secret)
	if err != nil {
		logger.Error("failed to init credential encoder", "error", err)
		os.Exit(1)
	}

	verifier, err := razorpay.NewVerifier(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Ticket.Currency)
	if err != nil {
		logger.Error("failed to init payment verifier", "error", err)
		os.Exit(1)
	}

	// Repositories
	txManager := postgres.NewTxManager(pgPool)
	ticketRepo := postgres.NewTicketRepository(pgPool)
	transactionRepo := postgres.NewTransactionRepository(pgPool)
	routeRepo := postgres.NewRouteRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)

	loc := cfg.Ticket.Location()

	// UseCases
	issueTicketUC := usecase.NewIssueTicket(
		txManager, ticketRepo, transactionRepo, routeRepo, outboxRepo,
		encoder,
		notify.NewOutboxDispatcher(outboxRepo, producerName),
		usecase.SystemClock,
		usecase.IssueOptions{
			TTL:             cfg.Ticket.TTL,
			MaxScans:        cfg.Ticket.MaxScans,
			Currency:        cfg.Ticket.Currency,
			DispatchTimeout: cfg.Notify.DispatchTimeout,
			Location:        loc,
			Producer:        producerName,
		},
		logger,
	)
	confirmPaymentUC := usecase.NewConfirmPayment(verifier, issueTicketUC, logger)
	validateTicketUC := usecase.NewValidateTicket(ticketRepo, encoder, redisClient, usecase.SystemClock, cfg.Ticket.MaxScans, logger)
	getTicketUC := usecase.NewGetTicket(ticketRepo, redisClient, usecase.SystemClock, cfg.Ticket.MaxScans, logger)
	routeCatalogUC := usecase.NewRouteCatalog(routeRepo, redisClient, logger)

	handlers := api.NewHandlers(confirmPaymentUC, validateTicketUC, getTicketUC, routeCatalogUC, loc, logger)
	apiHandler := api.NewRouter(handlers, redisClient, cfg.HTTP.RequestTimeout, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      apiHandler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.HTTP.Port, "version", cfg.App.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exiting")
}
