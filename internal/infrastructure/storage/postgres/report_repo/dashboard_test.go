package report_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxledger/internal/domain/dashboard"
)

func TestFill(t *testing.T) {
	totals := &dashboard.Totals{ByStatus: map[string]int64{}}
	err := fill(totals,
		ledgerSums{Assessed: "1500.00", Collected: "630.50", Unpaid: "869.50", Assessments: 4},
		paymentSums{Refunded: "30.50", Payments: 3},
		[]statusCount{{"unpaid", 2}, {"Paid", 1}, {"partially_paid", 1}},
	)
	require.NoError(t, err)

	assert.Equal(t, "1500", totals.TotalAssessed.String())
	assert.Equal(t, "869.5", totals.TotalUnpaid.String())
	assert.Equal(t, "30.5", totals.TotalRefunded.String())
	assert.Equal(t, int64(3), totals.Payments)
	assert.Equal(t, map[string]int64{"unpaid": 2, "partially_paid": 1, "paid": 1}, totals.ByStatus)
}

func TestFill_BadNumber(t *testing.T) {
	err := fill(&dashboard.Totals{ByStatus: map[string]int64{}}, ledgerSums{Assessed: "x"}, paymentSums{}, nil)
	assert.ErrorContains(t, err, "assessed")
}

func TestQueries(t *testing.T) {
	sql, _, err := statusQuery().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT status, COUNT(*) AS count FROM assessments GROUP BY status", sql)

	sql, args, err := taxpayerQuery().ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM users WHERE role = $1", sql)
	assert.Equal(t, []any{"taxpayer"}, args)
}
