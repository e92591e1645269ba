package shared

import "github.com/shopspring/decimal"

// Hundred is the divisor for percent calculations.
var Hundred = decimal.NewFromInt(100)

// RoundMoney rounds a monetary amount to two decimal places, half up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ValidPercent reports whether p lies within [0, 100].
func ValidPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(Hundred)
}

// MoneyEqual compares two amounts after rounding to cents.
func MoneyEqual(a, b decimal.Decimal) bool {
	return RoundMoney(a).Equal(RoundMoney(b))
}
