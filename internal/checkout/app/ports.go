package app

import (
	"context"
	"time"

	"github.com/bloemendal/storefront/internal/checkout/domain"
	"github.com/shopspring/decimal"
)

type Address struct {
	Name        string
	Street      string
	HouseNumber string
	Addition    string
	Postcode    string
	City        string
	Country     string
}

type OrderLine struct {
	ProductID   string
	VariantID   string
	ProductName string
	Size        string
	Color       string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
	ImageURL    string

	IsPresale           bool
	PresaleExpectedDate *time.Time
}

// OrderDraft is the snapshot handed to the order service at submission.
type OrderDraft struct {
	Email           string
	ShippingAddress Address
	BillingAddress  Address
	PromoCode       string
	DiscountAmount  decimal.Decimal
	Lines           []OrderLine
}

type CreatedOrder struct {
	ID        string
	Total     decimal.Decimal
	CreatedAt time.Time
}

type Orders interface {
	Create(ctx context.Context, draft OrderDraft) (CreatedOrder, error)

	// AuthoritativeTotal is the server-recomputed charge amount for the
	// order. Intent creation charges this figure, never a client-held one.
	AuthoritativeTotal(ctx context.Context, orderID string) (decimal.Decimal, error)

	MarkPaid(ctx context.Context, orderID string) error
	MarkPaymentFailed(ctx context.Context, orderID string) error
}

type IntentRequest struct {
	OrderID        string
	Method         string
	Amount         decimal.Decimal
	Email          string
	IdempotencyKey string
}

type Payments interface {
	CreateIntent(ctx context.Context, req IntentRequest) (domain.PaymentIntent, error)
}

type LookupResult struct {
	Street      string
	City        string
	FullAddress string
}

// AddressLookup resolves a Dutch postcode + house number to an address.
// Other countries never reach this port.
type AddressLookup interface {
	Lookup(ctx context.Context, postcode, houseNumber, addition string) (LookupResult, error)
}

// FlagStore persists small session flags across loads, such as the
// user-aborted-payment marker.
type FlagStore interface {
	Get(key string) bool
	Set(key string, value bool)
}
