package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one cart line, keyed by VariantID (unique per size/color
// combination). UnitPrice is tax-inclusive.
type Item struct {
	ProductID string
	VariantID string
	Name      string
	Size      string
	Color     string
	ColorHex  string
	UnitPrice decimal.Decimal
	Quantity  int
	Image     string
	SKU       string
	Stock     int

	IsPresale           bool
	PresaleExpectedDate *time.Time
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
