package models

import "github.com/shopspring/decimal"

// Scale limits for user supplied numbers. Discounts are stored as NUMERIC(5, 2).
const (
	AmountScale   = 4
	DiscountScale = 2

	maxAmountExp = 12
)

// MaxAmount bounds quantities, prices and totals entered by users.
var MaxAmount = decimal.New(1, maxAmountExp)

// CheckAmount rejects values with more than scale decimal places or an
// absolute value above MaxAmount. The exponent is checked before any
// comparison, as comparing rescales the coefficient to a common exponent.
func CheckAmount(field string, d decimal.Decimal, scale int32) error {
	if d.Exponent() < -scale {
		return Invalidf(field, "at most %d decimal places are allowed", scale)
	}
	if d.Exponent() > maxAmountExp || d.Abs().GreaterThan(MaxAmount) {
		return Invalidf(field, "must not exceed %s", MaxAmount)
	}
	return nil
}
