package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bynlora/internal/config"
	applog "bynlora/internal/log"
	"bynlora/internal/notify"
	"bynlora/internal/recurring"
	"bynlora/internal/reminder"
	"bynlora/internal/scheduler"
	"bynlora/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

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

	mailer := notify.NewEmailClient(notify.Config{
		Endpoint:   cfg.EmailEndpoint,
		ServiceID:  cfg.EmailServiceID,
		TemplateID: cfg.EmailTemplateID,
		PublicKey:  cfg.EmailPublicKey,
		PrivateKey: cfg.EmailPrivateKey,
		Timeout:    cfg.EmailTimeout,
	})

	materializer := recurring.NewMaterializer(repo)
	reminderJob := reminder.NewJob(repo, mailer)

	sched := scheduler.New(cfg.SchedulerInterval)
	sched.AddDaily("materialize-recurring", cfg.DailyRunHour, func(ctx context.Context, now time.Time) error {
		count, err := materializer.ProcessDue(ctx, now)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Recurring expenses materialized", "created", count)
		return nil
	})
	sched.AddMonthly("monthly-reminder", cfg.MonthlyRunDay, cfg.MonthlyRunHour, func(ctx context.Context, now time.Time) error {
		count, err := reminderJob.Run(ctx, now)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Monthly reminders sent", "reminded", count)
		return nil
	})

	logger.Info("Scheduler configured",
		"interval", cfg.SchedulerInterval,
		"daily_hour", cfg.DailyRunHour,
		"monthly_day", cfg.MonthlyRunDay,
		"monthly_hour", cfg.MonthlyRunHour)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}
