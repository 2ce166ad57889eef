package auth_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxledger/internal/domain"
	"taxledger/internal/domain/taxpayer"
)

func TestTaxpayerListQuery(t *testing.T) {
	repo := NewTaxpayerRepo(nil)

	sql, args, err := repo.listQuery(taxpayer.Filter{
		ListFilter: domain.ListFilter{Search: "tex"},
		Ward:       "Ward 7",
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM users WHERE role = $1 AND ward = $2")
	assert.Contains(t, sql, "business_name ILIKE $5")
	assert.NotContains(t, sql, "password_hash")
	assert.Equal(t, []any{"taxpayer", "Ward 7", "%tex%", "%tex%", "%tex%", "%tex%"}, args)
}

func TestUserRepo_SelectsAllColumns(t *testing.T) {
	repo := NewUserRepo(nil)
	assert.Contains(t, repo.cols, "password_hash")
	assert.Contains(t, repo.cols, "locked_until")
	assert.Contains(t, repo.cols, "role")
}
