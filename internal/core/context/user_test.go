package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAccessTaxpayer(t *testing.T) {
	tests := []struct {
		name   string
		user   *UserContext
		target string
		want   bool
	}{
		{"anonymous", nil, "tp-1", false},
		{"admin sees anyone", &UserContext{UserID: "a-1", Role: RoleAdmin}, "tp-1", true},
		{"taxpayer sees self", &UserContext{UserID: "tp-1", Role: RoleTaxpayer}, "tp-1", true},
		{"taxpayer blocked from others", &UserContext{UserID: "tp-2", Role: RoleTaxpayer}, "tp-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.user != nil {
				ctx = WithUser(ctx, tt.user)
			}
			assert.Equal(t, tt.want, CanAccessTaxpayer(ctx, tt.target))
		})
	}
}
