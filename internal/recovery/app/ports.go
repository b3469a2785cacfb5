package app

import (
	"context"
	"time"

	orderdomain "github.com/bloemendal/storefront/internal/order/domain"
)

type OrderReader interface {
	Get(ctx context.Context, id string) (orderdomain.Order, error)
}

// Variant is the live product variant metadata re-resolved at recovery
// time; stock and colors may have moved since the order snapshot was taken.
type Variant struct {
	ID       string
	Stock    int
	Color    string
	ColorHex string
	Image    string

	IsPresale           bool
	PresaleExpectedDate *time.Time
}

type VariantReader interface {
	Get(ctx context.Context, variantID string) (Variant, error)
}
