package app

import (
	"context"

	"github.com/bloemendal/storefront/internal/promo/domain"
	"github.com/shopspring/decimal"
)

// CartLine is the cart snapshot the validation service receives, used
// server-side to reject no-stacking combinations.
type CartLine struct {
	ProductID string
	VariantID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Result is the validation service's verdict. Valid == false with a Reason
// is a business rejection, distinct from a transport error.
type Result struct {
	Valid  bool
	Type   domain.DiscountType
	Value  decimal.Decimal
	Amount decimal.Decimal
	Reason string
}

type Validator interface {
	Validate(ctx context.Context, code string, orderTotal decimal.Decimal, lines []CartLine) (Result, error)
}
