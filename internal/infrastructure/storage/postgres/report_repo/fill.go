package report_repo

import (
	"fmt"

	"taxledger/internal/core/types"
	"taxledger/internal/domain/assessment"
	"taxledger/internal/domain/dashboard"
)

// fill converts the raw aggregate rows. Legacy status spellings are
// folded into the canonical buckets.
func fill(t *dashboard.Totals, ls ledgerSums, ps paymentSums, counts []statusCount) error {
	var err error
	if t.TotalAssessed, err = types.NewMoneyFromString(ls.Assessed); err != nil {
		return fmt.Errorf("parse assessed: %w", err)
	}
	if t.TotalCollected, err = types.NewMoneyFromString(ls.Collected); err != nil {
		return fmt.Errorf("parse collected: %w", err)
	}
	if t.TotalUnpaid, err = types.NewMoneyFromString(ls.Unpaid); err != nil {
		return fmt.Errorf("parse unpaid: %w", err)
	}
	if t.TotalRefunded, err = types.NewMoneyFromString(ps.Refunded); err != nil {
		return fmt.Errorf("parse refunded: %w", err)
	}
	t.Assessments = ls.Assessments
	t.Payments = ps.Payments

	for _, s := range []assessment.Status{assessment.StatusUnpaid, assessment.StatusPartiallyPaid, assessment.StatusPaid} {
		t.ByStatus[string(s)] = 0
	}
	for _, c := range counts {
		key := c.Status
		if st, err := assessment.ParseStatus(c.Status); err == nil {
			key = string(st)
		}
		t.ByStatus[key] += c.Count
	}
	return nil
}
