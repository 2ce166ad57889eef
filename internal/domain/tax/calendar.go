package tax

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"taxledger/internal/core/apperror"
)

// Period is the half of the financial year an assessment covers.
type Period string

const (
	// PeriodH1 covers April to September, due 30 September.
	PeriodH1 Period = "H1"
	// PeriodH2 covers October to March, due 31 March.
	PeriodH2 Period = "H2"
)

// Valid reports whether p is H1 or H2.
func (p Period) Valid() bool {
	return p == PeriodH1 || p == PeriodH2
}

// DueDate returns the end of the half-year that contains now, at midnight
// in now's location.
func DueDate(now time.Time) time.Time {
	y, m, _ := now.Date()
	loc := now.Location()
	switch {
	case m >= time.April && m <= time.September:
		return time.Date(y, time.September, 30, 0, 0, 0, 0, loc)
	case m >= time.October:
		return time.Date(y+1, time.March, 31, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, time.March, 31, 0, 0, 0, 0, loc)
	}
}

// PeriodOf returns the half-year a date falls in.
func PeriodOf(t time.Time) Period {
	if m := t.Month(); m >= time.April && m <= time.September {
		return PeriodH1
	}
	return PeriodH2
}

// FinancialYearOf formats the April-March year containing t, e.g. "2025-26".
func FinancialYearOf(t time.Time) string {
	y := t.Year()
	if t.Month() < time.April {
		y--
	}
	return fmt.Sprintf("%d-%02d", y, (y+1)%100)
}

var finYearRe = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// ValidateFinancialYear checks the YYYY-YY form and that the years are consecutive.
func ValidateFinancialYear(fy string) error {
	m := finYearRe.FindStringSubmatch(fy)
	if m == nil {
		return apperror.NewValidation("financial year must look like 2025-26").
			WithDetail("field", "financialYear")
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if (start+1)%100 != end {
		return apperror.NewValidation("financial year must span consecutive years").
			WithDetail("field", "financialYear").
			WithDetail("value", fy)
	}
	return nil
}
