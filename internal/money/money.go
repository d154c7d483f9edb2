package money

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// Round rounds an amount to the nearest cent, halves going up.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(hundred).Add(half).Floor().Div(hundred)
}

// Format renders an amount with exactly two decimals.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// Cents converts an amount to whole minor units after rounding.
func Cents(amount decimal.Decimal) int64 {
	return Round(amount).Mul(hundred).IntPart()
}

// FromCents converts minor units back into an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
