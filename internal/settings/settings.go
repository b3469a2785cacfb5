package settings

import (
	"context"

	"github.com/shopspring/decimal"
)

// Settings carries the store-wide figures the pricing calculator needs.
// Both amounts are tax-inclusive EUR.
type Settings struct {
	ShippingCost          decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

type Provider interface {
	Current(ctx context.Context) (Settings, error)
}

// Static serves fixed settings, typically loaded from env config at startup.
type Static struct {
	s Settings
}

func NewStatic(s Settings) Static {
	return Static{s: s}
}

func (p Static) Current(ctx context.Context) (Settings, error) {
	return p.s, nil
}
