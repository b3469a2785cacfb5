package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cartdomain "github.com/bloemendal/storefront/internal/cart/domain"
	checkoutdomain "github.com/bloemendal/storefront/internal/checkout/domain"
	orderdomain "github.com/bloemendal/storefront/internal/order/domain"
	"github.com/bloemendal/storefront/internal/recovery/domain"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyPaid = errors.New("order is already paid")
	ErrCancelled   = errors.New("order is cancelled")
)

// RecoveredCheckout is everything a session needs to resume an abandoned
// order: the rebuilt cart, the pre-filled form and the payment step.
type RecoveredCheckout struct {
	OrderID        string
	OrderCreatedAt time.Time
	Items          []cartdomain.Item
	Form           *checkoutdomain.Form
	Step           checkoutdomain.Step
}

type Service struct {
	orders   OrderReader
	variants VariantReader
	log      *slog.Logger

	maxConcurrent int
}

func NewService(orders OrderReader, variants VariantReader, log *slog.Logger, maxConcurrent int) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Service{
		orders:        orders,
		variants:      variants,
		log:           log,
		maxConcurrent: maxConcurrent,
	}
}

// Recover rebuilds cart and form state from a persisted, incomplete order.
// Only abandoned-but-still-open orders qualify: paid and cancelled orders
// are rejected without touching any state.
func (s *Service) Recover(ctx context.Context, orderID string) (RecoveredCheckout, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return RecoveredCheckout{}, fmt.Errorf("load order %s: %w", orderID, err)
	}

	if order.PaymentStatus == orderdomain.PaymentPaid {
		return RecoveredCheckout{}, ErrAlreadyPaid
	}
	if order.Status == orderdomain.StatusCancelled {
		return RecoveredCheckout{}, ErrCancelled
	}

	items := make([]cartdomain.Item, len(order.Items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range order.Items {
		g.Go(func() error {
			snap := order.Items[idx]
			item := cartdomain.Item{
				ProductID:           snap.ProductID,
				VariantID:           snap.VariantID,
				Name:                snap.ProductName,
				Size:                snap.Size,
				Color:               snap.Color,
				SKU:                 snap.SKU,
				UnitPrice:           snap.PriceAtPurchase,
				Quantity:            snap.Quantity,
				Image:               snap.ImageURL,
				IsPresale:           snap.IsPresale,
				PresaleExpectedDate: snap.PresaleExpectedDate,
			}

			variant, err := s.variants.Get(ctx, snap.VariantID)
			if err != nil {
				// The snapshot still renders without live metadata; stock
				// simply stays unknown.
				s.log.Warn("variant refresh failed", "variant_id", snap.VariantID, "err", err)
			} else {
				item.Stock = variant.Stock
				item.Color = variant.Color
				item.ColorHex = variant.ColorHex
				if variant.Image != "" {
					item.Image = variant.Image
				}
				item.IsPresale = variant.IsPresale
				item.PresaleExpectedDate = variant.PresaleExpectedDate
			}

			items[idx] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return RecoveredCheckout{}, err
	}

	form := s.rebuildForm(order)

	s.log.Info("order recovered", "order_id", order.ID, "items", len(items))

	return RecoveredCheckout{
		OrderID:        order.ID,
		OrderCreatedAt: order.CreatedAt,
		Items:          items,
		Form:           form,
		Step:           checkoutdomain.StepPayment,
	}, nil
}

func (s *Service) rebuildForm(order orderdomain.Order) *checkoutdomain.Form {
	addr := order.ShippingAddress

	country := addr.Country
	if country == "" {
		country = "NL"
	}
	form := checkoutdomain.NewForm(country)

	first, last := domain.SplitName(addr.Name)
	form.Set(checkoutdomain.FieldEmail, order.Email)
	form.Set(checkoutdomain.FieldFirstName, first)
	form.Set(checkoutdomain.FieldLastName, last)
	form.Set(checkoutdomain.FieldPostcode, addr.Postcode)
	form.Set(checkoutdomain.FieldCity, addr.City)

	street, number, addition := addr.Street, addr.HouseNumber, addr.Addition
	if number == "" {
		parsed := domain.ParseStreetAddress(addr.Street)
		street, number, addition = parsed.Street, parsed.HouseNumber, parsed.Addition
	}
	form.Set(checkoutdomain.FieldStreet, street)
	form.Set(checkoutdomain.FieldHouseNumber, number)
	form.Set(checkoutdomain.FieldAddition, addition)

	return form
}
