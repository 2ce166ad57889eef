package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"taxledger/internal/core/apperror"
	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/payment"
	"taxledger/internal/infrastructure/storage/postgres"
)

const paymentsTable = "payments"

var paymentOrder = map[string]string{
	"paid_at":        "p.paid_at",
	"created_at":     "p.created_at",
	"amount":         "p.amount",
	"receipt_number": "p.receipt_number",
	"mode":           "p.mode",
	"taxpayer_name":  "u.name",
}

// PaymentRepo implements payment.Repository.
type PaymentRepo struct {
	txManager  *postgres.TxManager
	selectCols []string
}

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txManager *postgres.TxManager) *PaymentRepo {
	cols := postgres.Qualify("p", postgres.WritableColumns[payment.Payment]())
	cols = append(cols,
		"u.name AS taxpayer_name",
		"a.financial_year",
		"a.period",
	)
	return &PaymentRepo{txManager: txManager, selectCols: cols}
}

func (r *PaymentRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(r.selectCols...).
		From(paymentsTable + " p").
		Join("users u ON u.id = p.taxpayer_id").
		Join("assessments a ON a.id = p.assessment_id")
}

// Create inserts a payment.
func (r *PaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	err := postgres.Insert(ctx, r.txManager.GetQuerier(ctx), paymentsTable, p)
	if constraint, dup := postgres.UniqueViolation(err); dup {
		if p.GatewayPaymentID != nil {
			return apperror.NewDuplicate("payment", "gatewayPaymentId", *p.GatewayPaymentID).WithCause(err)
		}
		return apperror.NewDuplicate("payment", constraint, p.ReceiptNumber).WithCause(err)
	}
	return err
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"p.id": paymentID}), paymentID.String())
}

// GetForUpdate retrieves and locks a payment row.
func (r *PaymentRepo) GetForUpdate(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetForUpdate requires transaction context")
	}
	q := r.baseSelect().
		Where(squirrel.Eq{"p.id": paymentID}).
		Suffix("FOR UPDATE OF p")
	return r.get(ctx, q, paymentID.String())
}

// GetByGatewayPaymentID retrieves the payment recorded for a gateway payment.
func (r *PaymentRepo) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*payment.Payment, error) {
	return r.get(ctx, r.baseSelect().Where(squirrel.Eq{"p.gateway_payment_id": gatewayPaymentID}), gatewayPaymentID)
}

func (r *PaymentRepo) get(ctx context.Context, q squirrel.SelectBuilder, ref string) (*payment.Payment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p payment.Payment
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("payment", ref)
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// UpdateRefund persists the refund columns.
func (r *PaymentRepo) UpdateRefund(ctx context.Context, p *payment.Payment) error {
	sql, args, err := postgres.Builder().
		Update(paymentsTable).
		Set("refund_amount", p.RefundAmount).
		Set("refund_status", p.RefundStatus).
		Set("gateway_refund_id", p.GatewayRefundID).
		Set("refunded_at", p.RefundedAt).
		Set("updated_at", p.UpdatedAt).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update refund: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("payment", p.ID.String())
	}
	return nil
}

// List retrieves payments with filtering and pagination.
func (r *PaymentRepo) List(ctx context.Context, filter payment.Filter) (domain.ListResult[*payment.Payment], error) {
	order, err := postgres.OrderBy(filter.OrderBy, "-paid_at", paymentOrder)
	if err != nil {
		return domain.ListResult[*payment.Payment]{}, err
	}
	return postgres.Page[*payment.Payment](ctx, r.txManager.GetQuerier(ctx), r.listQuery(filter), filter.ListFilter, order)
}

// Each streams every payment matching filter, ignoring pagination.
func (r *PaymentRepo) Each(ctx context.Context, filter payment.Filter, fn func(*payment.Payment) error) error {
	order, err := postgres.OrderBy(filter.OrderBy, "paid_at", paymentOrder)
	if err != nil {
		return err
	}

	sql, args, err := r.listQuery(filter).OrderBy(order).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	scanner := pgxscan.NewRowScanner(rows)
	for rows.Next() {
		var p payment.Payment
		if err := scanner.Scan(&p); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		if err := fn(&p); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *PaymentRepo) listQuery(filter payment.Filter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if filter.Mode != nil {
		q = q.Where(squirrel.Eq{"p.mode": *filter.Mode})
	}
	if filter.RefundStatus != nil {
		q = q.Where(squirrel.Eq{"p.refund_status": *filter.RefundStatus})
	}
	if filter.TaxpayerID != nil {
		q = q.Where(squirrel.Eq{"p.taxpayer_id": *filter.TaxpayerID})
	}
	if filter.AssessmentID != nil {
		q = q.Where(squirrel.Eq{"p.assessment_id": *filter.AssessmentID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"p.paid_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"p.paid_at": *filter.To})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"u.name": pattern},
			squirrel.ILike{"p.receipt_number": pattern},
			squirrel.ILike{"p.gateway_payment_id": pattern},
		})
	}
	return q
}

var _ payment.Repository = (*PaymentRepo)(nil)
