package adapter

import (
	"context"

	"github.com/bloemendal/storefront/internal/checkout/app"
	orderapp "github.com/bloemendal/storefront/internal/order/app"
	orderdomain "github.com/bloemendal/storefront/internal/order/domain"
	"github.com/shopspring/decimal"
)

// OrderWriter adapts the order service to the checkout orchestrator's port.
type OrderWriter struct {
	svc *orderapp.Service
}

func NewOrderWriter(svc *orderapp.Service) *OrderWriter {
	return &OrderWriter{svc: svc}
}

func (a *OrderWriter) Create(ctx context.Context, draft app.OrderDraft) (app.CreatedOrder, error) {
	req := orderdomain.CreateRequest{
		Email:           draft.Email,
		ShippingAddress: toOrderAddress(draft.ShippingAddress),
		BillingAddress:  toOrderAddress(draft.BillingAddress),
		PromoCode:       draft.PromoCode,
		DiscountAmount:  draft.DiscountAmount,
	}
	for _, l := range draft.Lines {
		req.Items = append(req.Items, orderdomain.ItemRequest{
			ProductID:           l.ProductID,
			VariantID:           l.VariantID,
			ProductName:         l.ProductName,
			Size:                l.Size,
			Color:               l.Color,
			SKU:                 l.SKU,
			Quantity:            l.Quantity,
			UnitPrice:           l.UnitPrice,
			ImageURL:            l.ImageURL,
			IsPresale:           l.IsPresale,
			PresaleExpectedDate: l.PresaleExpectedDate,
		})
	}

	created, err := a.svc.Create(ctx, req)
	if err != nil {
		return app.CreatedOrder{}, err
	}

	return app.CreatedOrder{
		ID:        created.ID,
		Total:     created.Total,
		CreatedAt: created.CreatedAt,
	}, nil
}

func (a *OrderWriter) AuthoritativeTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	return a.svc.AuthoritativeTotal(ctx, orderID)
}

func (a *OrderWriter) MarkPaid(ctx context.Context, orderID string) error {
	return a.svc.MarkPaymentStatus(ctx, orderID, orderdomain.PaymentPaid)
}

func (a *OrderWriter) MarkPaymentFailed(ctx context.Context, orderID string) error {
	return a.svc.MarkPaymentStatus(ctx, orderID, orderdomain.PaymentFailed)
}

func toOrderAddress(a app.Address) orderdomain.Address {
	return orderdomain.Address{
		Name:        a.Name,
		Street:      a.Street,
		HouseNumber: a.HouseNumber,
		Addition:    a.Addition,
		Postcode:    a.Postcode,
		City:        a.City,
		Country:     a.Country,
	}
}
