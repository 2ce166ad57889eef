package ledger_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"taxledger/internal/core/id"
	"taxledger/internal/domain"
	"taxledger/internal/domain/reminder"
	"taxledger/internal/infrastructure/storage/postgres"
)

const remindersTable = "reminders"

var reminderOrder = map[string]string{
	"created_at":    "r.created_at",
	"reminder_date": "r.reminder_date",
	"status":        "r.status",
	"taxpayer_name": "u.name",
}

// ReminderRepo implements reminder.Repository.
type ReminderRepo struct {
	txManager  *postgres.TxManager
	inserter   *postgres.BatchInserter
	columns    []string
	selectCols []string
}

// NewReminderRepo creates a new reminder repository.
func NewReminderRepo(txManager *postgres.TxManager) *ReminderRepo {
	columns := postgres.WritableColumns[reminder.Reminder]()
	selectCols := postgres.Qualify("r", columns)
	selectCols = append(selectCols,
		"u.name AS taxpayer_name",
		"a.financial_year",
		"a.balance",
	)
	return &ReminderRepo{
		txManager:  txManager,
		inserter:   postgres.NewBatchInserter(txManager),
		columns:    columns,
		selectCols: selectCols,
	}
}

// Create inserts a reminder.
func (r *ReminderRepo) Create(ctx context.Context, rem *reminder.Reminder) error {
	return postgres.Insert(ctx, r.txManager.GetQuerier(ctx), remindersTable, rem)
}

// CreateMany bulk-inserts reminders with COPY.
func (r *ReminderRepo) CreateMany(ctx context.Context, rs []*reminder.Reminder) (int64, error) {
	rows := make([][]any, len(rs))
	for i, rem := range rs {
		data := postgres.StructToMap(rem)
		row := make([]any, len(r.columns))
		for j, col := range r.columns {
			row[j] = data[col]
		}
		rows[i] = row
	}

	n, err := r.inserter.CopyFromSlice(ctx, remindersTable, r.columns, rows)
	if err != nil {
		return 0, fmt.Errorf("copy reminders: %w", err)
	}
	return n, nil
}

// List retrieves reminders with filtering and pagination.
func (r *ReminderRepo) List(ctx context.Context, filter reminder.Filter) (domain.ListResult[*reminder.Reminder], error) {
	order, err := postgres.OrderBy(filter.OrderBy, "-created_at", reminderOrder)
	if err != nil {
		return domain.ListResult[*reminder.Reminder]{}, err
	}
	return postgres.Page[*reminder.Reminder](ctx, r.txManager.GetQuerier(ctx), r.listQuery(filter), filter.ListFilter, order)
}

func (r *ReminderRepo) listQuery(filter reminder.Filter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(r.selectCols...).
		From(remindersTable + " r").
		Join("users u ON u.id = r.taxpayer_id").
		Join("assessments a ON a.id = r.assessment_id")

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"r.status": *filter.Status})
	}
	if filter.TaxpayerID != nil {
		q = q.Where(squirrel.Eq{"r.taxpayer_id": *filter.TaxpayerID})
	}
	if filter.AssessmentID != nil {
		q = q.Where(squirrel.Eq{"r.assessment_id": *filter.AssessmentID})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"u.name": pattern},
			squirrel.ILike{"r.message": pattern},
		})
	}
	return q
}

// MarkDueSent flips due pending reminders to sent and returns them.
func (r *ReminderRepo) MarkDueSent(ctx context.Context, asOf time.Time) ([]*reminder.Reminder, error) {
	sql, args, err := postgres.Builder().
		Update(remindersTable).
		Set("status", reminder.StatusSent).
		Set("sent_at", asOf).
		Where(squirrel.Eq{"status": reminder.StatusPending}).
		Where(squirrel.LtOrEq{"reminder_date": asOf}).
		Suffix("RETURNING " + strings.Join(r.columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var sent []*reminder.Reminder
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &sent, sql, args...); err != nil {
		return nil, fmt.Errorf("mark reminders sent: %w", err)
	}
	return sent, nil
}

// RemindedSince returns the assessments that got a reminder at or after since.
func (r *ReminderRepo) RemindedSince(ctx context.Context, since time.Time) (map[id.ID]bool, error) {
	sql, args, err := postgres.Builder().
		Select("assessment_id").
		Distinct().
		From(remindersTable).
		Where(squirrel.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("reminded since: %w", err)
	}

	out := make(map[id.ID]bool, len(ids))
	for _, v := range ids {
		out[v] = true
	}
	return out, nil
}

var _ reminder.Repository = (*ReminderRepo)(nil)
