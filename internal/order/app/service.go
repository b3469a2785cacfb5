package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bloemendal/storefront/internal/order/domain"
	"github.com/bloemendal/storefront/internal/pricing"
	"github.com/bloemendal/storefront/internal/settings"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("order not found")
)

type Service struct {
	repo     OrderRepo
	settings settings.Provider
	log      *slog.Logger
	now      func() time.Time
}

func NewService(repo OrderRepo, settings settings.Provider, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// Create snapshots the cart into an order. Totals are recomputed here from
// the line items; whatever total the client displayed is not consulted.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Order, error) {
	if strings.TrimSpace(req.Email) == "" || len(req.Items) == 0 {
		return domain.Order{}, ErrInvalidInput
	}
	if req.DiscountAmount.IsNegative() {
		return domain.Order{}, ErrInvalidInput
	}

	items := make([]domain.Item, 0, len(req.Items))
	subtotal := decimal.Zero

	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: item %d: quantity must be positive, got %d", ErrInvalidInput, i, it.Quantity)
		}
		if it.UnitPrice.IsNegative() {
			return domain.Order{}, fmt.Errorf("%w: item %d: unit price cannot be negative", ErrInvalidInput, i)
		}

		lineTotal := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		items = append(items, domain.Item{
			ProductID:           it.ProductID,
			VariantID:           it.VariantID,
			ProductName:         it.ProductName,
			Size:                it.Size,
			Color:               it.Color,
			SKU:                 it.SKU,
			Quantity:            it.Quantity,
			PriceAtPurchase:     it.UnitPrice,
			Subtotal:            lineTotal,
			ImageURL:            it.ImageURL,
			IsPresale:           it.IsPresale,
			PresaleExpectedDate: it.PresaleExpectedDate,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	st, err := s.settings.Current(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load settings: %w", err)
	}

	totals := pricing.ComputeTotals(subtotal, req.DiscountAmount, st.ShippingCost, st.FreeShippingThreshold)

	order := domain.Order{
		Email:             strings.TrimSpace(req.Email),
		Status:            domain.StatusPending,
		PaymentStatus:     domain.PaymentUnpaid,
		Subtotal:          subtotal,
		DiscountAmount:    req.DiscountAmount,
		ShippingCost:      totals.Shipping,
		Total:             totals.Total,
		PromoCode:         req.PromoCode,
		ShippingAddress:   req.ShippingAddress,
		BillingAddress:    req.BillingAddress,
		CheckoutStartedAt: s.now(),
		Items:             items,
	}

	created, err := s.repo.CreateTx(ctx, order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.log.Info("order created",
		"order_id", created.ID,
		"total", created.Total,
		"items", len(created.Items))

	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Order{}, ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}

// AuthoritativeTotal recomputes the payable total from the persisted line
// items and current settings. Payment-intent creation charges this figure;
// the client-submitted expected total is only compared for diagnostics.
func (s *Service) AuthoritativeTotal(ctx context.Context, id string) (decimal.Decimal, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	subtotal := decimal.Zero
	for _, it := range order.Items {
		subtotal = subtotal.Add(it.PriceAtPurchase.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	st, err := s.settings.Current(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load settings: %w", err)
	}

	totals := pricing.ComputeTotals(subtotal, order.DiscountAmount, st.ShippingCost, st.FreeShippingThreshold)

	if !totals.Total.Equal(order.Total) {
		s.log.Warn("stored order total differs from recomputed total",
			"order_id", order.ID,
			"stored", order.Total,
			"recomputed", totals.Total)
	}

	return totals.Total, nil
}

func (s *Service) AttachPaymentIntent(ctx context.Context, id, intentID string) error {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(intentID) == "" {
		return ErrInvalidInput
	}
	return s.repo.SetPaymentIntent(ctx, id, intentID)
}

func (s *Service) MarkPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	return s.repo.SetPaymentStatus(ctx, id, status)
}
