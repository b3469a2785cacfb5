package domain

import "github.com/shopspring/decimal"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Applied is the client-held snapshot of a validated promo code. The
// validation service owns the code's constraints; this snapshot only caches
// what is needed to display and, in degraded mode, recompute the discount.
type Applied struct {
	Code   string
	Type   DiscountType
	Value  decimal.Decimal
	Amount decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ComputeDiscount derives the discount amount for a subtotal. Fixed
// discounts are capped at the subtotal so the payable total can never go
// negative; percentage discounts scale with the subtotal.
func ComputeDiscount(t DiscountType, value, subtotal decimal.Decimal) decimal.Decimal {
	switch t {
	case DiscountPercentage:
		return subtotal.Mul(value).Div(hundred).Round(2)
	case DiscountFixed:
		if value.GreaterThan(subtotal) {
			return subtotal
		}
		return value
	default:
		return decimal.Zero
	}
}
