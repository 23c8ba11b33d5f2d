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

	"busticket/internal/application/factories/infrastructure"
	"busticket/internal/config"
	"busticket/internal/infrastructure/postgres"
	"busticket/internal/infrastructure/sms"
	"busticket/internal/notify"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

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

	sender, err := sms.New(ctx, cfg.SMS)
	if err != nil {
		logger.Error("failed to init sms sender", "provider", cfg.SMS.Provider, "error", err)
		os.Exit(1)
	}

	consumer := notify.NewConsumer(
		infraFactory.KafkaConsumer(),
		postgres.NewTxManager(pgPool),
		postgres.NewInboxRepository(pgPool),
		sender,
		notify.ConsumerConfig{
			Name:        cfg.Kafka.GroupID,
			MaxRetries:  cfg.Notify.MaxRetries,
			BaseBackoff: cfg.Notify.BaseBackoff,
			SendTimeout: cfg.Notify.SendTimeout,
		},
		logger,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Notify.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error {
		logger.Info("Notifier metrics listening", "port", cfg.Notify.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("notifier stopped with error", "error", err)
	}

	logger.Info("notifier exited")
}
