// Package main is the entry point for the taxledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"taxledger/internal/domain/assessment"
	"taxledger/internal/domain/auth"
	"taxledger/internal/domain/dashboard"
	"taxledger/internal/domain/payment"
	"taxledger/internal/domain/reminder"
	"taxledger/internal/domain/taxpayer"
	"taxledger/internal/infrastructure/cache"
	"taxledger/internal/infrastructure/export"
	"taxledger/internal/infrastructure/gateway"
	v1 "taxledger/internal/infrastructure/http/v1"
	"taxledger/internal/infrastructure/http/v1/handlers"
	"taxledger/internal/infrastructure/numerator"
	"taxledger/internal/infrastructure/storage/postgres"
	"taxledger/internal/infrastructure/storage/postgres/auth_repo"
	"taxledger/internal/infrastructure/storage/postgres/ledger_repo"
	"taxledger/internal/infrastructure/storage/postgres/report_repo"
	"taxledger/pkg/logger"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	appEnv := getEnv("APP_ENV", "development")

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: appEnv == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting taxledger server", "version", version, "env", appEnv)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManager(pool)

	// --- Repositories ---
	userRepo := auth_repo.NewUserRepo(txm)
	tokenRepo := auth_repo.NewTokenRepo(txm)
	taxpayerRepo := auth_repo.NewTaxpayerRepo(txm)
	assessmentRepo := ledger_repo.NewAssessmentRepo(txm)
	paymentRepo := ledger_repo.NewPaymentRepo(txm)
	reminderRepo := ledger_repo.NewReminderRepo(txm)

	gatewayEvents, err := postgres.NewGatewayEventLog(txm)
	if err != nil {
		log.Fatalw("failed to create gateway event log", "error", err)
	}

	// --- Auth ---
	jwtConfig := auth.DefaultJWTConfig(mustEnv("JWT_SECRET"))
	jwtConfig.AccessTokenTTL = getEnvDuration("JWT_TTL", jwtConfig.AccessTokenTTL)
	jwtService := auth.NewJWTService(jwtConfig)
	authService := auth.NewService(userRepo, tokenRepo, txm, jwtService, auth.DefaultServiceConfig())

	// --- Domain services ---
	taxpayerService := taxpayer.NewService(taxpayerRepo, authService)
	assessmentService := assessment.NewService(assessmentRepo, taxpayerService, txm)
	reminderService := reminder.NewService(reminderRepo, assessmentRepo, txm)

	paymentCfg := payment.ServiceConfig{
		Repo:      paymentRepo,
		Ledger:    assessmentRepo,
		Events:    gatewayEvents,
		Numerator: numerator.New(txm),
		TxManager: txm,
	}
	if gw := newGateway(log); gw != nil {
		paymentCfg.Gateway = gw
	}
	paymentService := payment.NewService(paymentCfg)

	// --- Dashboard (optionally cached in redis) ---
	healthChecks := map[string]handlers.Pinger{}
	var dashboardCache dashboard.Cache
	if addr := getEnv("REDIS_ADDR", ""); addr != "" {
		rc, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     addr,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		})
		if err != nil {
			log.Warnw("redis unavailable, dashboard cache disabled", "error", err)
		} else {
			defer rc.Close()
			dashboardCache = rc
			healthChecks["redis"] = rc
		}
	}
	dashboardService := dashboard.NewService(
		report_repo.NewDashboardRepo(txm),
		dashboardCache,
		getEnvDuration("DASHBOARD_CACHE_TTL", 30*time.Second),
	)
	dashboard.InvalidateOn(dashboardService, assessmentService.Hooks())
	dashboard.InvalidateOn(dashboardService, paymentService.Hooks())

	// --- Router ---
	router, err := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Pool:         pool,
		HealthChecks: healthChecks,
		HealthInfo: handlers.HealthInfo{
			App:            "taxledger",
			Version:        version,
			Environment:    appEnv,
			OnlinePayments: paymentService.OnlineEnabled(),
			DashboardCache: dashboardCache != nil,
		},
		AuthService:       authService,
		TaxpayerService:   taxpayerService,
		AssessmentService: assessmentService,
		PaymentService:    paymentService,
		ReminderService:   reminderService,
		DashboardService:  dashboardService,
		GatewayEvents:     gatewayEvents,
		IdempotencyStore:  postgres.NewIdempotencyStore(txm, getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)),
		Issuer: export.Issuer{
			Name:    getEnv("RECEIPT_ISSUER_NAME", export.DefaultIssuer.Name),
			Address: getEnv("RECEIPT_ISSUER_ADDRESS", ""),
		},
		ExposeResetToken: appEnv == "development",
		ReleaseMode:      appEnv != "development",
	})
	if err != nil {
		log.Fatalw("failed to build router", "error", err)
	}

	// --- HTTP Server ---
	port := getEnv("SERVER_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port, "online_payments", paymentService.OnlineEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	postgres.LogPoolStats(shutdownCtx, pool)
	log.Info("server stopped")
}

// newGateway returns nil when online payments are switched off or unconfigured.
func newGateway(log *logger.Logger) payment.Gateway {
	if getEnvBool("GATEWAY_DISABLED", false) {
		log.Info("online payments disabled by configuration")
		return nil
	}
	gw, err := gateway.NewRazorpay(gateway.Config{
		KeyID:     getEnv("GATEWAY_KEY_ID", ""),
		KeySecret: getEnv("GATEWAY_KEY_SECRET", ""),
		BaseURL:   getEnv("GATEWAY_BASE_URL", ""),
		Timeout:   getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
	})
	if err != nil {
		log.Warnw("payment gateway not configured, online payments disabled", "error", err)
		return nil
	}
	return gw
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
