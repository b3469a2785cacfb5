package pricing

import "github.com/shopspring/decimal"

// All amounts in this package are tax-inclusive EUR. VAT is reported by
// back-calculation at the fixed 21% rate, never added on top.
var vatDivisor = decimal.RequireFromString("1.21")

type Totals struct {
	SubtotalAfterDiscount decimal.Decimal
	Shipping              decimal.Decimal
	Total                 decimal.Decimal

	// Informational breakdown of the VAT already contained in the amounts.
	VATAmount   decimal.Decimal
	ShippingVAT decimal.Decimal
	TotalVAT    decimal.Decimal
}

// ComputeTotals derives the payable total for a cart. Shipping is waived when
// the discounted subtotal reaches the free-shipping threshold (inclusive).
// The result is non-negative for non-negative inputs.
func ComputeTotals(subtotal, discountAmount, shippingCost, freeShippingThreshold decimal.Decimal) Totals {
	after := subtotal.Sub(discountAmount)
	if after.IsNegative() {
		after = decimal.Zero
	}

	shipping := shippingCost
	if after.GreaterThanOrEqual(freeShippingThreshold) {
		shipping = decimal.Zero
	}

	total := after.Add(shipping)

	return Totals{
		SubtotalAfterDiscount: after,
		Shipping:              shipping,
		Total:                 total,
		VATAmount:             VATPortion(after),
		ShippingVAT:           VATPortion(shipping),
		TotalVAT:              VATPortion(total),
	}
}

// ExclVAT strips the included 21% VAT from a tax-inclusive amount,
// rounded to whole cents.
func ExclVAT(incl decimal.Decimal) decimal.Decimal {
	return incl.Div(vatDivisor).Round(2)
}

// VATPortion reports the VAT contained in a tax-inclusive amount. By
// construction ExclVAT(incl) + VATPortion(incl) == incl.
func VATPortion(incl decimal.Decimal) decimal.Decimal {
	return incl.Sub(ExclVAT(incl))
}
