package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bynlora/internal/amqp"
	"bynlora/internal/budget"
	"bynlora/internal/config"
	apphttp "bynlora/internal/http"
	applog "bynlora/internal/log"
	"bynlora/internal/notify"
	"bynlora/internal/storage"
)

// amqpDispatcher forwards budget checks to the alerts worker.
type amqpDispatcher struct {
	client *amqp.Client
}

func (d *amqpDispatcher) DispatchBudgetCheck(ctx context.Context, userID int64) error {
	return d.client.PublishBudgetCheck(ctx, userID)
}

// localDispatcher runs checks in-process when the broker is not
// configured.
type localDispatcher struct {
	tracker *budget.Tracker
}

func (d *localDispatcher) DispatchBudgetCheck(_ context.Context, userID int64) error {
	d.tracker.CheckDetached(userID)
	return nil
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting bynlora API server")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Budget checks go through the broker when one is configured, so the
	// alerts worker carries the load. Otherwise they run in-process.
	var dispatcher apphttp.BudgetDispatcher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		dispatcher = &amqpDispatcher{client: client}
		logger.Info("Budget checks will run via alerts worker", "queue", cfg.AMQPQueue)
	} else {
		mailer := notify.NewEmailClient(notify.Config{
			Endpoint:   cfg.EmailEndpoint,
			ServiceID:  cfg.EmailServiceID,
			TemplateID: cfg.EmailTemplateID,
			PublicKey:  cfg.EmailPublicKey,
			PrivateKey: cfg.EmailPrivateKey,
			Timeout:    cfg.EmailTimeout,
		})
		tracker := budget.NewTracker(repo, mailer, cfg.AlertThresholds)
		dispatcher = &localDispatcher{tracker: tracker}
		logger.Info("AMQP disabled, budget checks run in-process")
	}

	handler := apphttp.NewServer(repo, dispatcher, cfg.JWTSecret, logger.WithComponent("http"))

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
