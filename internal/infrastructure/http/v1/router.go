// Package v1 provides HTTP API version 1.
package v1

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	appctx "taxledger/internal/core/context"
	"taxledger/internal/infrastructure/export"
	"taxledger/internal/infrastructure/http/v1/dto"
	"taxledger/internal/infrastructure/http/v1/handlers"
	"taxledger/internal/infrastructure/http/v1/middleware"
	"taxledger/internal/infrastructure/storage/postgres"
	"taxledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Pool is probed by /health/ready and reported by /health/info
	Pool *postgres.Pool

	// HealthChecks are extra readiness probes (redis)
	HealthChecks map[string]handlers.Pinger
	HealthInfo   handlers.HealthInfo

	AuthService       handlers.AuthService
	TaxpayerService   handlers.TaxpayerService
	AssessmentService handlers.AssessmentService
	PaymentService    handlers.PaymentService
	ReminderService   handlers.ReminderService
	DashboardService  handlers.DashboardService

	// GatewayEvents enables the admin gateway-event log endpoint (optional)
	GatewayEvents handlers.GatewayEventReader

	// IdempotencyStore backs X-Idempotency-Key on payment mutations (optional)
	IdempotencyStore middleware.IdempotencyStore

	// Issuer is printed on receipts
	Issuer export.Issuer

	// ExposeResetToken returns reset tokens from forgot-password (development only)
	ExposeResetToken bool

	// ReleaseMode switches gin to release mode
	ReleaseMode bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Issuer.Name == "" {
		cfg.Issuer = export.DefaultIssuer
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterValidators(v); err != nil {
			return nil, fmt.Errorf("register validators: %w", err)
		}
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	handlers.NewHealthHandler(cfg.Pool, cfg.HealthInfo, cfg.HealthChecks).
		RegisterRoutes(router.Group("/health"))

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")

	handlers.NewTaxHandler(base).RegisterRoutes(v1.Group("/tax"))

	authenticated := v1.Group("")
	authenticated.Use(middleware.Auth(cfg.JWTValidator))

	admin := authenticated.Group("/admin")
	admin.Use(middleware.RequireRole(appctx.RoleAdmin))

	me := authenticated.Group("/me")
	me.Use(middleware.RequireRole(appctx.RoleTaxpayer))

	var idempotent gin.HandlerFunc
	if cfg.IdempotencyStore != nil {
		idempotent = middleware.Idempotency(cfg.IdempotencyStore)
	}

	if cfg.AuthService != nil {
		handlers.NewAuthHandler(base, cfg.AuthService, cfg.ExposeResetToken).
			RegisterRoutes(v1.Group("/auth"), authenticated.Group("/auth"))
	}
	if cfg.TaxpayerService != nil {
		handlers.NewTaxpayerHandler(base, cfg.TaxpayerService).RegisterRoutes(admin)
	}
	if cfg.AssessmentService != nil {
		handlers.NewAssessmentHandler(base, cfg.AssessmentService, cfg.GatewayEvents).RegisterRoutes(admin, me)
	}
	if cfg.PaymentService != nil {
		handlers.NewPaymentHandler(base, cfg.PaymentService, cfg.Issuer).RegisterRoutes(handlers.PaymentRoutes{
			Admin:         admin,
			Me:            me,
			Authenticated: authenticated,
			Idempotent:    idempotent,
		})
	}
	if cfg.ReminderService != nil {
		handlers.NewReminderHandler(base, cfg.ReminderService).RegisterRoutes(admin, me)
	}
	if cfg.DashboardService != nil {
		handlers.NewDashboardHandler(base, cfg.DashboardService).RegisterRoutes(admin)
	}

	return router, nil
}
