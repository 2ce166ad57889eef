package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxledger/internal/domain/payment"
)

func TestParseExportArgs(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

	opts, err := parseExportArgs(nil, now)
	require.NoError(t, err)
	assert.Equal(t, "payments_20260302_093000.xlsx", opts.output)
	assert.Nil(t, opts.filter.From)
	assert.Nil(t, opts.filter.To)

	opts, err = parseExportArgs([]string{"-o", "fy.xlsx", "--from", "2025-04-01", "--to", "2026-03-31", "--mode", "cash"}, now)
	require.NoError(t, err)
	assert.Equal(t, "fy.xlsx", opts.output)
	require.NotNil(t, opts.filter.From)
	require.NotNil(t, opts.filter.To)
	assert.Equal(t, "2025-04-01", opts.filter.From.Format(dateLayout))
	assert.Equal(t, "2026-04-01", opts.filter.To.Format(dateLayout), "to is inclusive on the command line")
	require.NotNil(t, opts.filter.Mode)
	assert.Equal(t, payment.ModeCash, *opts.filter.Mode)

	cases := [][]string{
		{"--from", "01/04/2025"},
		{"--to", "2026-13-01"},
		{"--from", "2026-03-02", "--to", "2026-03-01"},
		{"--mode", "barter"},
		{"--unknown"},
	}
	for _, args := range cases {
		_, err := parseExportArgs(args, now)
		assert.Error(t, err, args)
	}
}

func TestMigrate_RejectsUnknownCommand(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/taxledger")
	err := migrate([]string{"redo-everything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown migrate command")
}
