package dto

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"taxledger/internal/domain/payment"
	"taxledger/internal/domain/tax"
)

// RegisterValidators adds the ledger's binding tags to v:
//
//	paymentmode  a payment mode other than online (counter entries)
//	finyear      a financial year such as 2025-26
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("paymentmode", validateManualMode); err != nil {
		return fmt.Errorf("register paymentmode: %w", err)
	}
	if err := v.RegisterValidation("finyear", validateFinancialYear); err != nil {
		return fmt.Errorf("register finyear: %w", err)
	}
	return nil
}

func validateManualMode(fl validator.FieldLevel) bool {
	m := payment.Mode(fl.Field().String())
	return m.Valid() && m != payment.ModeOnline
}

func validateFinancialYear(fl validator.FieldLevel) bool {
	return tax.ValidateFinancialYear(fl.Field().String()) == nil
}

// FieldErrors flattens binding errors into field -> failed tag.
// Returns nil when err is not a validation error.
func FieldErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
