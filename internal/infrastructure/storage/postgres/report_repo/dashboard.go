// Package report_repo provides PostgreSQL aggregate queries for reports.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	appctx "taxledger/internal/core/context"
	"taxledger/internal/domain/dashboard"
	"taxledger/internal/infrastructure/storage/postgres"
)

// DashboardRepo implements dashboard.Repository.
type DashboardRepo struct {
	txManager *postgres.TxManager
	now       func() time.Time
}

// NewDashboardRepo creates a new dashboard repository.
func NewDashboardRepo(txManager *postgres.TxManager) *DashboardRepo {
	return &DashboardRepo{txManager: txManager, now: time.Now}
}

type ledgerSums struct {
	Assessed    string `db:"assessed"`
	Collected   string `db:"collected"`
	Unpaid      string `db:"unpaid"`
	Assessments int64  `db:"assessments"`
}

type paymentSums struct {
	Refunded string `db:"refunded"`
	Payments int64  `db:"payments"`
}

type statusCount struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}

func ledgerQuery() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(
			"COALESCE(SUM(amount), 0)::text AS assessed",
			"COALESCE(SUM(paid_amount), 0)::text AS collected",
			"COALESCE(SUM(balance), 0)::text AS unpaid",
			"COUNT(*) AS assessments",
		).
		From("assessments")
}

func paymentQuery() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(
			"COALESCE(SUM(refund_amount), 0)::text AS refunded",
			"COUNT(*) AS payments",
		).
		From("payments")
}

func statusQuery() squirrel.SelectBuilder {
	return postgres.Builder().
		Select("status", "COUNT(*) AS count").
		From("assessments").
		GroupBy("status")
}

func taxpayerQuery() squirrel.SelectBuilder {
	return postgres.Builder().
		Select("COUNT(*)").
		From("users").
		Where(squirrel.Eq{"role": appctx.RoleTaxpayer})
}

// Totals computes the dashboard figures in one read-only snapshot.
func (r *DashboardRepo) Totals(ctx context.Context) (*dashboard.Totals, error) {
	t := &dashboard.Totals{ByStatus: map[string]int64{}, GeneratedAt: r.now().UTC()}

	err := r.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)

		var ls ledgerSums
		if err := getQ(ctx, q, &ls, ledgerQuery()); err != nil {
			return fmt.Errorf("ledger sums: %w", err)
		}
		var ps paymentSums
		if err := getQ(ctx, q, &ps, paymentQuery()); err != nil {
			return fmt.Errorf("payment sums: %w", err)
		}

		sql, args, err := statusQuery().ToSql()
		if err != nil {
			return err
		}
		var counts []statusCount
		if err := pgxscan.Select(ctx, q, &counts, sql, args...); err != nil {
			return fmt.Errorf("status counts: %w", err)
		}

		sql, args, err = taxpayerQuery().ToSql()
		if err != nil {
			return err
		}
		if err := q.QueryRow(ctx, sql, args...).Scan(&t.TotalTaxpayers); err != nil {
			return fmt.Errorf("count taxpayers: %w", err)
		}

		return fill(t, ls, ps, counts)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func getQ(ctx context.Context, q postgres.Querier, dst any, b squirrel.SelectBuilder) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Get(ctx, q, dst, sql, args...)
}

var _ dashboard.Repository = (*DashboardRepo)(nil)
