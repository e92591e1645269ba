package invoicing

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// LineAmounts holds the derived amounts for a single line.
type LineAmounts struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Taxable  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// CalculateLineAmounts computes line amounts from quantity, unit price,
// discount percent and tax rate. Discount and tax are rounded half-up to two
// decimal places, so Total == Subtotal - Discount + Tax holds exactly.
func CalculateLineAmounts(quantity int64, unitPrice, discountPct, taxRate decimal.Decimal) (LineAmounts, error) {
	if quantity <= 0 {
		return LineAmounts{}, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if unitPrice.IsNegative() {
		return LineAmounts{}, &ValidationError{Field: "unitPrice", Reason: "must not be negative"}
	}
	if !shared.ValidPercent(discountPct) {
		return LineAmounts{}, &ValidationError{Field: "discountPercent", Reason: "must be between 0 and 100"}
	}
	if !shared.ValidPercent(taxRate) {
		return LineAmounts{}, &ValidationError{Field: "taxRate", Reason: "must be between 0 and 100"}
	}

	subtotal := unitPrice.Mul(decimal.NewFromInt(quantity))
	discount := shared.RoundMoney(subtotal.Mul(discountPct).Div(shared.Hundred))
	taxable := subtotal.Sub(discount)
	tax := shared.RoundMoney(taxable.Mul(taxRate).Div(shared.Hundred))

	return LineAmounts{
		Subtotal: shared.RoundMoney(subtotal),
		Discount: discount,
		Taxable:  shared.RoundMoney(taxable),
		Tax:      tax,
		Total:    shared.RoundMoney(taxable.Add(tax)),
	}, nil
}
