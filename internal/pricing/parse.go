package pricing

import (
	"strings"

	"procurement/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParsePrice reads a price typed by a user. Blank input means "not entered" and
// yields zero. Anything else must be a non-negative number.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := parseNumber("price", s, models.AmountScale)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, models.Invalidf("price", "must not be negative, got %s", s)
	}
	return d, nil
}

// ParseDiscount reads a discount percentage. Blank input is no discount.
func ParseDiscount(s string) (decimal.Decimal, error) {
	d, err := parseNumber("discount", s, models.DiscountScale)
	if err != nil {
		return decimal.Zero, err
	}
	if err := checkDiscount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ParseMatrix converts raw[itemId][supplierId] text prices into a Matrix.
func ParseMatrix(raw map[string]map[string]string) (Matrix, error) {
	m := make(Matrix, len(raw))
	for itemId, bySupplier := range raw {
		for supplierId, s := range bySupplier {
			p, err := ParsePrice(s)
			if err != nil {
				return nil, models.Invalidf("prices", "item '%s', supplier '%s': %s", itemId, supplierId, err)
			}
			m.Set(itemId, supplierId, p)
		}
	}
	return m, nil
}

// ParseDiscounts converts raw[supplierId] text discounts.
func ParseDiscounts(raw map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for supplierId, s := range raw {
		d, err := ParseDiscount(s)
		if err != nil {
			return nil, models.Invalidf("discounts", "supplier '%s': %s", supplierId, err)
		}
		out[supplierId] = d
	}
	return out, nil
}

// parseNumber accepts a decimal point, or a single decimal comma followed by
// one or two digits as in "12,50". Thousands separators are rejected: "1,000"
// is ambiguous.
func parseNumber(field, s string, scale int32) (decimal.Decimal, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return decimal.Zero, nil
	}

	if i := strings.IndexByte(in, ','); i >= 0 {
		frac := in[i+1:]
		if strings.ContainsAny(frac, ",") || strings.Contains(in, ".") || len(frac) == 0 || len(frac) > 2 {
			return decimal.Zero, models.Invalidf(field, "'%s' is ambiguous, use a decimal point without thousands separators", in)
		}
		in = in[:i] + "." + frac
	}

	d, err := decimal.NewFromString(in)
	if err != nil {
		return decimal.Zero, models.Invalidf(field, "'%s' is not a number", s)
	}
	if err = models.CheckAmount(field, d, scale); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func checkDiscount(d decimal.Decimal) error {
	if err := models.CheckAmount("discount", d, models.DiscountScale); err != nil {
		return err
	}
	if d.IsNegative() || d.GreaterThan(hundred) {
		return models.Invalidf("discount", "must be between 0 and 100, got %s", d)
	}
	return nil
}
