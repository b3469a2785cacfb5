package app

import (
	"context"

	"github.com/bloemendal/storefront/internal/order/domain"
)

type OrderRepo interface {
	CreateTx(ctx context.Context, order domain.Order) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	SetPaymentIntent(ctx context.Context, id, intentID string) error
	SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error
}
