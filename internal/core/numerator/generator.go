package numerator

import (
	"context"
	"time"
)

// Generator generates sequential numbers.
// Implementations live in the infrastructure layer.
type Generator interface {
	// GetNextNumber generates the next number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., REC-2026-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the current counter value (data migrations).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
