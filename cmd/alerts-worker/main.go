package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bynlora/internal/amqp"
	"bynlora/internal/budget"
	"bynlora/internal/config"
	applog "bynlora/internal/log"
	"bynlora/internal/notify"
	"bynlora/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting alerts-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required; without a broker the API server runs checks in-process")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	mailer := notify.NewEmailClient(notify.Config{
		Endpoint:   cfg.EmailEndpoint,
		ServiceID:  cfg.EmailServiceID,
		TemplateID: cfg.EmailTemplateID,
		PublicKey:  cfg.EmailPublicKey,
		PrivateKey: cfg.EmailPrivateKey,
		Timeout:    cfg.EmailTimeout,
	})
	tracker := budget.NewTracker(repo, mailer, cfg.AlertThresholds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeBudgetCheck(gctx, func(msg *amqp.BudgetCheckMessage) error {
			checkCtx, cancel := context.WithTimeout(gctx, 30*time.Second)
			defer cancel()
			return tracker.Check(checkCtx, msg.UserID, time.Now())
		})
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Alerts-worker shutdown complete")
}
