// Package tax implements the professional tax slab table and the
// half-year calendar used to date assessments.
package tax

import (
	"taxledger/internal/core/apperror"
	"taxledger/internal/core/types"
)

// Slab is one bracket of the half-yearly professional tax schedule.
// UpperBound is inclusive; nil marks the open-ended top bracket.
type Slab struct {
	UpperBound *types.Money `json:"upperBound"`
	Tax        types.Money  `json:"tax"`
	Label      string       `json:"label"`
}

func bound(rupees int64) *types.Money {
	m := types.NewMoneyFromInt(rupees)
	return &m
}

var slabs = []Slab{
	{UpperBound: bound(12000), Tax: types.NewMoneyFromInt(0), Label: "Up to ₹12,000"},
	{UpperBound: bound(18000), Tax: types.NewMoneyFromInt(120), Label: "₹12,001 - ₹18,000"},
	{UpperBound: bound(30000), Tax: types.NewMoneyFromInt(180), Label: "₹18,001 - ₹30,000"},
	{UpperBound: bound(45000), Tax: types.NewMoneyFromInt(300), Label: "₹30,001 - ₹45,000"},
	{UpperBound: bound(60000), Tax: types.NewMoneyFromInt(450), Label: "₹45,001 - ₹60,000"},
	{UpperBound: bound(75000), Tax: types.NewMoneyFromInt(600), Label: "₹60,001 - ₹75,000"},
	{UpperBound: bound(100000), Tax: types.NewMoneyFromInt(750), Label: "₹75,001 - ₹1,00,000"},
	{UpperBound: bound(125000), Tax: types.NewMoneyFromInt(1000), Label: "₹1,00,001 - ₹1,25,000"},
	{UpperBound: nil, Tax: types.NewMoneyFromInt(1250), Label: "Above ₹1,25,000"},
}

// Slabs returns a copy of the schedule, lowest bracket first.
func Slabs() []Slab {
	out := make([]Slab, len(slabs))
	copy(out, slabs)
	return out
}

// Calculate returns the bracket matching a half-year income.
func Calculate(halfYearIncome types.Money) (Slab, error) {
	if halfYearIncome.IsNegative() {
		return Slab{}, apperror.NewValidation("half-year income must not be negative").
			WithDetail("field", "halfYearIncome")
	}
	for _, s := range slabs {
		if s.UpperBound == nil || halfYearIncome.LessThanOrEqual(*s.UpperBound) {
			return s, nil
		}
	}
	return slabs[len(slabs)-1], nil
}
