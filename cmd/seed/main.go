// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"taxledger/internal/core/apperror"
	appctx "taxledger/internal/core/context"
	"taxledger/internal/core/types"
	"taxledger/internal/domain/assessment"
	"taxledger/internal/domain/auth"
	"taxledger/internal/domain/payment"
	"taxledger/internal/domain/tax"
	"taxledger/internal/domain/taxpayer"
	"taxledger/internal/infrastructure/numerator"
	"taxledger/internal/infrastructure/storage/postgres"
	"taxledger/internal/infrastructure/storage/postgres/auth_repo"
	"taxledger/internal/infrastructure/storage/postgres/ledger_repo"
	"taxledger/pkg/logger"
)

type seeder struct {
	log         *logger.Logger
	users       *auth_repo.UserRepo
	auth        *auth.Service
	taxpayers   *taxpayer.Service
	assessments *assessment.Service
	payments    *payment.Service
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()

	// Connect to database
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txm := postgres.NewTxManager(pool)
	userRepo := auth_repo.NewUserRepo(txm)
	assessmentRepo := ledger_repo.NewAssessmentRepo(txm)
	authService := auth.NewService(userRepo, auth_repo.NewTokenRepo(txm), txm, nil, auth.DefaultServiceConfig())
	taxpayerService := taxpayer.NewService(auth_repo.NewTaxpayerRepo(txm), authService)

	s := &seeder{
		log:         log,
		users:       userRepo,
		auth:        authService,
		taxpayers:   taxpayerService,
		assessments: assessment.NewService(assessmentRepo, taxpayerService, txm),
		payments: payment.NewService(payment.ServiceConfig{
			Repo:      ledger_repo.NewPaymentRepo(txm),
			Ledger:    assessmentRepo,
			Numerator: numerator.New(txm),
			TxManager: txm,
		}),
	}

	admin, err := s.seedAdmin(ctx, getEnv("ADMIN_USERNAME", "admin"), getEnv("ADMIN_PASSWORD", "admin123"))
	if err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	// Seed demo data if requested
	if os.Getenv("SEED_DEMO_DATA") == "true" {
		adminCtx := appctx.WithUser(ctx, &appctx.UserContext{
			UserID:   admin.ID.String(),
			Username: admin.Username,
			Role:     appctx.RoleAdmin,
		})
		if err := s.seedDemoData(adminCtx, time.Now()); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func (s *seeder) seedAdmin(ctx context.Context, username, password string) (*auth.User, error) {
	existing, err := s.users.GetByUsername(ctx, auth.NormalizeUsername(username))
	if err == nil {
		s.log.Infow("admin user already exists", "username", existing.Username, "user_id", existing.ID)
		return existing, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("check admin exists: %w", err)
	}

	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	admin := auth.NewUser(username, hash, appctx.RoleAdmin)
	admin.Name = "Administrator"
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("insert admin user: %w", err)
	}

	s.log.Infow("admin user created", "username", admin.Username, "user_id", admin.ID)
	return admin, nil
}

type demoTaxpayer struct {
	in     taxpayer.CreateInput
	income string
	paid   string
}

var demoTaxpayers = []demoTaxpayer{
	{
		in: taxpayer.CreateInput{
			Name: "Anil Kumar", Username: "anil", Password: "demo123",
			BusinessName: "Kumar Textiles", Ward: "Ward 4", Phone: "9847000001",
		},
		income: "52000",
		paid:   "450",
	},
	{
		in: taxpayer.CreateInput{
			Name: "Fathima Beevi", Username: "fathima", Password: "demo123",
			BusinessName: "Beevi Stores", Ward: "Ward 7", Phone: "9847000002",
		},
		income: "110000",
		paid:   "400",
	},
	{
		in: taxpayer.CreateInput{
			Name: "Joseph Mathew", Username: "joseph", Password: "demo123",
			BusinessName: "Mathew Clinic", Ward: "Ward 2",
		},
		income: "140000",
	},
}

// seedDemoData registers demo taxpayers with an assessment for the current
// half-year and some counter payments. Existing usernames are skipped.
func (s *seeder) seedDemoData(ctx context.Context, now time.Time) error {
	due := tax.DueDate(now)
	fy := tax.FinancialYearOf(due)
	period := tax.PeriodOf(due)

	for _, d := range demoTaxpayers {
		tp, err := s.taxpayers.Create(ctx, d.in)
		if err != nil {
			if apperror.HasCode(err, apperror.CodeDuplicate) {
				s.log.Infow("demo taxpayer already exists", "username", d.in.Username)
				continue
			}
			return fmt.Errorf("create taxpayer %s: %w", d.in.Username, err)
		}

		income := types.MustMoney(d.income)
		a, err := s.assessments.Create(ctx, assessment.CreateInput{
			TaxpayerID:     tp.ID,
			FinancialYear:  fy,
			Period:         period,
			HalfYearIncome: &income,
		})
		if err != nil {
			return fmt.Errorf("assess %s: %w", d.in.Username, err)
		}

		if d.paid == "" {
			continue
		}
		p, err := s.payments.RecordManual(ctx, payment.ManualInput{
			AssessmentID: a.ID,
			Amount:       types.MustMoney(d.paid),
			Mode:         payment.ModeCash,
			Note:         "demo counter payment",
		})
		if err != nil {
			return fmt.Errorf("pay %s: %w", d.in.Username, err)
		}
		s.log.Infow("demo payment recorded", "username", d.in.Username, "receipt", p.ReceiptNumber)
	}

	s.log.Infow("demo data seeded", "financial_year", fy, "period", period)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
