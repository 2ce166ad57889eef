// Package types provides common type aliases and utilities.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a rupee amount with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits kept for rupee amounts.
const MoneyScale = 2

// NewMoneyFromInt creates a Money value from whole rupees.
func NewMoneyFromInt(rupees int64) Money {
	return decimal.NewFromInt(rupees)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds half away from zero to paise precision.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// NonNegative clamps m at zero.
func NonNegative(m Money) Money {
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}

// Paise is a rupee amount in minor units (1 INR = 100 paise).
// Payment gateways exchange amounts in this form.
type Paise int64

var paisePerRupee = decimal.NewFromInt(100)

// ToPaise converts a rupee amount into paise, rounding to two decimals first.
func ToPaise(m Money) Paise {
	return Paise(RoundMoney(m).Mul(paisePerRupee).IntPart())
}

// Money converts paise back to rupees.
func (p Paise) Money() Money {
	return decimal.NewFromInt(int64(p)).Div(paisePerRupee)
}

func (p Paise) IsPositive() bool { return p > 0 }

// String renders the amount in rupees with two decimals.
func (p Paise) String() string {
	return fmt.Sprintf("%s INR", p.Money().StringFixed(MoneyScale))
}
