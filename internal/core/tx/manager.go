// Package tx lets ledger services run work atomically without importing the
// postgres layer.
package tx

import (
	"context"
)

// Manager runs fn in one database transaction. Payment recording, refunds
// and assessment creation go through it so the ledger row lock, the balance
// update and the payment insert commit together.
type Manager interface {
	// RunInTransaction commits when fn returns nil and rolls back otherwise.
	// A call made while a transaction is already in ctx joins it.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds read-only snapshots, used for dashboard aggregates.
type ReadOnlyManager interface {
	Manager

	// ReadOnly runs fn in a READ ONLY transaction; writes inside it fail.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
