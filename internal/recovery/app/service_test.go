package app

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	checkoutdomain "github.com/bloemendal/storefront/internal/checkout/domain"
	orderdomain "github.com/bloemendal/storefront/internal/order/domain"
	"github.com/shopspring/decimal"
)

type fakeOrderReader struct {
	order orderdomain.Order
	err   error
}

func (f *fakeOrderReader) Get(ctx context.Context, id string) (orderdomain.Order, error) {
	return f.order, f.err
}

type fakeVariantReader struct {
	variants map[string]Variant
}

func (f *fakeVariantReader) Get(ctx context.Context, variantID string) (Variant, error) {
	v, ok := f.variants[variantID]
	if !ok {
		return Variant{}, errors.New("variant not found")
	}
	return v, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openOrder() orderdomain.Order {
	return orderdomain.Order{
		ID:            "order-1",
		Email:         "jan@voorbeeld.nl",
		Status:        orderdomain.StatusPending,
		PaymentStatus: orderdomain.PaymentUnpaid,
		ShippingAddress: orderdomain.Address{
			Name:     "Jan de Vries",
			Street:   "Hoofdstraat 12A",
			Postcode: "9713EW",
			City:     "Groningen",
			Country:  "NL",
		},
		Items: []orderdomain.Item{
			{
				ProductID:       "p1",
				VariantID:       "v1",
				ProductName:     "Wollen trui",
				Size:            "M",
				Color:           "Navy",
				SKU:             "TRUI-M-NAVY",
				Quantity:        2,
				PriceAtPurchase: dec("49.99"),
			},
		},
	}
}

func TestRecover(t *testing.T) {
	log := slog.Default()

	t.Run("rejects a paid order", func(t *testing.T) {
		order := openOrder()
		order.PaymentStatus = orderdomain.PaymentPaid
		svc := NewService(&fakeOrderReader{order: order}, &fakeVariantReader{}, log, 4)

		rec, err := svc.Recover(context.Background(), "order-1")
		if !errors.Is(err, ErrAlreadyPaid) {
			t.Fatalf("expected ErrAlreadyPaid, got %v", err)
		}
		if len(rec.Items) != 0 || rec.Form != nil {
			t.Fatal("rejected recovery must not populate state")
		}
	})

	t.Run("rejects a cancelled order", func(t *testing.T) {
		order := openOrder()
		order.Status = orderdomain.StatusCancelled
		svc := NewService(&fakeOrderReader{order: order}, &fakeVariantReader{}, log, 4)

		if _, err := svc.Recover(context.Background(), "order-1"); !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	})

	t.Run("rebuilds cart with refreshed variant data", func(t *testing.T) {
		variants := &fakeVariantReader{variants: map[string]Variant{
			"v1": {ID: "v1", Stock: 3, Color: "Donkerblauw", ColorHex: "#1a2b4c"},
		}}
		svc := NewService(&fakeOrderReader{order: openOrder()}, variants, log, 4)

		rec, err := svc.Recover(context.Background(), "order-1")
		if err != nil {
			t.Fatalf("Recover failed: %v", err)
		}

		if rec.Step != checkoutdomain.StepPayment {
			t.Fatalf("step = %s, want payment", rec.Step)
		}
		if len(rec.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(rec.Items))
		}

		it := rec.Items[0]
		if it.Stock != 3 || it.Color != "Donkerblauw" || it.ColorHex != "#1a2b4c" {
			t.Fatalf("variant data not refreshed: %+v", it)
		}
		if !it.UnitPrice.Equal(dec("49.99")) || it.Quantity != 2 {
			t.Fatalf("snapshot price/quantity lost: %+v", it)
		}
	})

	t.Run("variant refresh failure keeps the snapshot", func(t *testing.T) {
		svc := NewService(&fakeOrderReader{order: openOrder()}, &fakeVariantReader{}, log, 4)

		rec, err := svc.Recover(context.Background(), "order-1")
		if err != nil {
			t.Fatalf("Recover failed: %v", err)
		}
		if rec.Items[0].Color != "Navy" {
			t.Fatalf("snapshot color lost: %+v", rec.Items[0])
		}
	})

	t.Run("prefills the form from the persisted address", func(t *testing.T) {
		svc := NewService(&fakeOrderReader{order: openOrder()}, &fakeVariantReader{}, log, 4)

		rec, err := svc.Recover(context.Background(), "order-1")
		if err != nil {
			t.Fatalf("Recover failed: %v", err)
		}

		f := rec.Form
		if f.FirstName != "Jan" || f.LastName != "de Vries" {
			t.Fatalf("name split wrong: %q / %q", f.FirstName, f.LastName)
		}
		if f.Street != "Hoofdstraat" || f.HouseNumber != "12" || f.Addition != "A" {
			t.Fatalf("street split wrong: %q / %q / %q", f.Street, f.HouseNumber, f.Addition)
		}
		if f.Email != "jan@voorbeeld.nl" || f.Postcode != "9713EW" || f.City != "Groningen" {
			t.Fatalf("contact fields wrong: %+v", f)
		}
	})
}
