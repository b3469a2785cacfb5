package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"
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

// Order is created at checkout submission. Status transitions after that are
// driven externally (payment webhook, fulfilment); this service only creates
// orders, reads them back for recovery, and records payment outcomes.
type Order struct {
	ID            string
	Email         string
	Status        Status
	PaymentStatus PaymentStatus

	Subtotal       decimal.Decimal // pre-discount, tax-inclusive
	DiscountAmount decimal.Decimal
	ShippingCost   decimal.Decimal
	Total          decimal.Decimal
	PromoCode      string

	ShippingAddress Address
	BillingAddress  Address

	CheckoutStartedAt time.Time
	PaymentIntentID   string

	Items []Item

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is an immutable snapshot of a cart line at order-creation time.
type Item struct {
	ID              string
	OrderID         string
	ProductID       string
	VariantID       string
	ProductName     string
	Size            string
	Color           string
	SKU             string
	Quantity        int
	PriceAtPurchase decimal.Decimal
	Subtotal        decimal.Decimal
	ImageURL        string

	IsPresale           bool
	PresaleExpectedDate *time.Time
}

type CreateRequest struct {
	Email           string
	ShippingAddress Address
	BillingAddress  Address
	PromoCode       string
	DiscountAmount  decimal.Decimal
	Items           []ItemRequest
}

type ItemRequest struct {
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
