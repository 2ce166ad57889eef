// Package main is the entry point for the taxledger background worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"taxledger/internal/domain/assessment"
	"taxledger/internal/domain/auth"
	"taxledger/internal/domain/reminder"
	"taxledger/internal/domain/taxpayer"
	"taxledger/internal/infrastructure/storage/postgres"
	"taxledger/internal/infrastructure/storage/postgres/auth_repo"
	"taxledger/internal/infrastructure/storage/postgres/ledger_repo"
	"taxledger/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting taxledger worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)

	assessmentRepo := ledger_repo.NewAssessmentRepo(txm)
	authService := auth.NewService(
		auth_repo.NewUserRepo(txm),
		auth_repo.NewTokenRepo(txm),
		txm,
		nil, // no tokens are issued here
		auth.DefaultServiceConfig(),
	)
	taxpayerService := taxpayer.NewService(auth_repo.NewTaxpayerRepo(txm), authService)
	assessmentService := assessment.NewService(assessmentRepo, taxpayerService, txm)
	reminderService := reminder.NewService(ledger_repo.NewReminderRepo(txm), assessmentRepo, txm)
	idempotency := postgres.NewIdempotencyStore(txm, 0)

	interval := getEnvDuration("WORKER_INTERVAL", time.Minute)
	cleanupInterval := getEnvDuration("WORKER_CLEANUP_INTERVAL", time.Hour)

	worker := NewWorker(log, []Job{
		{Name: "refresh_statuses", Interval: interval, Run: counted(assessmentService.RefreshStatuses)},
		{Name: "dispatch_reminders", Interval: interval, Run: counted(reminderService.DispatchDue)},
		{Name: "generate_overdue_reminders", Interval: interval, Run: counted(reminderService.GenerateOverdue)},
		{Name: "cleanup_idempotency", Interval: cleanupInterval, Run: idempotency.CleanupExpired},
		{Name: "cleanup_reset_tokens", Interval: cleanupInterval, Run: authService.CleanupExpiredTokens},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// counted adapts jobs that report an int count.
func counted(fn func(context.Context) (int, error)) func(context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		n, err := fn(ctx)
		return int64(n), err
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
