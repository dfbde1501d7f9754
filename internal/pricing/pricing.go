package pricing

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/harborline/storefront-backend/pkg/errors"
)

var one = decimal.NewFromInt(1)

// LineTotal computes the total for one line: unitPrice * (1 - discount) * qty.
// Discount is a fraction in [0,1); values outside that range are rejected
// rather than clamped.
func LineTotal(unitPrice, discount decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if err := ValidateDiscount(discount); err != nil {
		return decimal.Zero, err
	}

	qty := decimal.NewFromInt(int64(quantity))
	if discount.IsPositive() {
		return unitPrice.Mul(one.Sub(discount)).Mul(qty).Round(2), nil
	}
	return unitPrice.Mul(qty).Round(2), nil
}

// ValidateDiscount enforces the [0,1) discount fraction contract.
func ValidateDiscount(discount decimal.Decimal) error {
	if discount.IsNegative() || discount.GreaterThanOrEqual(one) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount must be a fraction in [0,1)")
	}
	return nil
}

// SumTotals adds the provided line totals, rounding to currency precision.
func SumTotals(totals []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum.Round(2)
}
