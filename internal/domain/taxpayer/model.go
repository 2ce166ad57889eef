// Package taxpayer manages the taxpayer accounts administrators register.
package taxpayer

import (
	"context"
	"strings"
	"time"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/domain"
)

// Taxpayer is the public view of a users row with role taxpayer.
type Taxpayer struct {
	ID           id.ID     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Name         string    `db:"name" json:"name"`
	BusinessName string    `db:"business_name" json:"businessName"`
	Ward         string    `db:"ward" json:"ward"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	Address      string    `db:"address" json:"address,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks the required profile fields.
func (t *Taxpayer) Validate(_ context.Context) error {
	required := []struct{ field, value string }{
		{"name", t.Name},
		{"username", t.Username},
		{"businessName", t.BusinessName},
		{"ward", t.Ward},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperror.NewValidation(r.field + " is required").WithDetail("field", r.field)
		}
	}
	return nil
}

// Filter for listing taxpayers. Search matches name, username, business
// name and ward.
type Filter struct {
	domain.ListFilter
	Ward string
}

// Repository defines taxpayer storage operations.
type Repository interface {
	Create(ctx context.Context, t *Taxpayer, passwordHash string) error
	GetByID(ctx context.Context, taxpayerID id.ID) (*Taxpayer, error)
	List(ctx context.Context, filter Filter) (domain.ListResult[*Taxpayer], error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	IsTaxpayer(ctx context.Context, taxpayerID id.ID) (bool, error)
}
