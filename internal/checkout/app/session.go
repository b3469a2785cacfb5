package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cartapp "github.com/bloemendal/storefront/internal/cart/app"
	cartdomain "github.com/bloemendal/storefront/internal/cart/domain"
	"github.com/bloemendal/storefront/internal/checkout/domain"
	"github.com/bloemendal/storefront/internal/pricing"
	promoapp "github.com/bloemendal/storefront/internal/promo/app"
	"github.com/bloemendal/storefront/internal/settings"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrWrongStep     = errors.New("operation not valid in current step")
	ErrLookupCountry = errors.New("address lookup is only available for NL")
)

// ValidationError carries per-field messages back to the caller; the fields
// stay editable and no external service is contacted.
type ValidationError struct {
	Fields map[domain.Field]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form validation failed for %d fields", len(e.Fields))
}

// Session drives one checkout through details, payment and success, with
// cancellation returning to payment. Every guard the flow needs lives here:
// the submission lock, the single in-flight intent gate and the staleness
// check on load.
type Session struct {
	id  string
	log *slog.Logger

	cart     *cartapp.Store
	promo    *promoapp.Session
	settings settings.Provider
	orders   Orders
	payments Payments
	lookup   AddressLookup
	flags    FlagStore

	now func() time.Time

	mu             sync.Mutex
	step           domain.Step
	form           *domain.Form
	orderID        string
	orderCreatedAt time.Time
	startedAt      time.Time
	intent         domain.PaymentIntent
	intentMethod   string
	submitting     bool
	creatingIntent bool
}

type Deps struct {
	Settings settings.Provider
	Orders   Orders
	Payments Payments
	Lookup   AddressLookup
	Flags    FlagStore
	Log      *slog.Logger
}

func NewSession(id string, cart *cartapp.Store, promo *promoapp.Session, deps Deps) *Session {
	s := &Session{
		id:       id,
		log:      deps.Log.With("session_id", id),
		cart:     cart,
		promo:    promo,
		settings: deps.Settings,
		orders:   deps.Orders,
		payments: deps.Payments,
		lookup:   deps.Lookup,
		flags:    deps.Flags,
		now:      time.Now,
		step:     domain.StepDetails,
		form:     domain.NewForm("NL"),
	}
	s.startedAt = s.now()

	// Any cart mutation re-submits the stored promo code against the new
	// subtotal, so a stale discount amount can never linger.
	cart.OnChange(func(snap cartapp.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.promo.Revalidate(ctx, snap.Subtotal, promoLines(snap.Items))
	})

	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Cart() *cartapp.Store { return s.cart }

func (s *Session) Promo() *promoapp.Session { return s.promo }

func (s *Session) Step() domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) OrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderID
}

func (s *Session) Intent() domain.PaymentIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intent
}

// Load applies the after-the-fact checks that run when a session is picked
// up again: a persisted cancellation flag restores the payment step for the
// already-created order, and a stale session loses its cached client secret
// and falls back to the details step.
func (s *Session) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flags.Get(s.cancelKey()) && s.orderID != "" {
		s.flags.Set(s.cancelKey(), false)
		s.step = domain.StepPayment
		s.log.Info("restored payment step after cancelled payment", "order_id", s.orderID)
	}

	now := s.now()
	sessionStale := now.Sub(s.startedAt) > domain.SessionStaleAfter
	orderFresh := s.orderID != "" && now.Sub(s.orderCreatedAt) <= domain.OrderFreshWindow

	if sessionStale && !orderFresh && s.intent.ClientSecret != "" {
		s.log.Info("dropping stale payment intent", "order_id", s.orderID, "intent_id", s.intent.ID)
		s.intent = domain.PaymentIntent{}
		s.intentMethod = ""
		s.step = domain.StepDetails
	}
}

func (s *Session) Form() *domain.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *Session) SetField(field domain.Field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.Set(field, value)
}

func (s *Session) TouchField(field domain.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.Touch(field)
}

// LookupAddress fills street and city from the NL postcode service. A
// lookup failure is recorded on the form, never fatal.
func (s *Session) LookupAddress(ctx context.Context) error {
	s.mu.Lock()
	if s.form.Country != "NL" {
		s.mu.Unlock()
		return ErrLookupCountry
	}
	postcode, number, addition := s.form.Postcode, s.form.HouseNumber, s.form.Addition
	s.mu.Unlock()

	res, err := s.lookup.Lookup(ctx, postcode, number, addition)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.form.Lookup = domain.LookupState{Done: true, Err: "address not found"}
		s.log.Warn("address lookup failed", "postcode", postcode, "err", err)
		return nil
	}

	s.form.Set(domain.FieldStreet, res.Street)
	s.form.Set(domain.FieldCity, res.City)
	s.form.Lookup = domain.LookupState{Done: true, FullAddress: res.FullAddress, City: res.City}
	return nil
}

// SubmitDetails validates the form and creates the order snapshot. A second
// call while one is in flight is a silent no-op; the lock resets on error
// or on returning to details.
func (s *Session) SubmitDetails(ctx context.Context) error {
	s.mu.Lock()
	if s.step != domain.StepDetails {
		s.mu.Unlock()
		return ErrWrongStep
	}
	if s.submitting {
		s.log.Debug("duplicate submit ignored, order creation in flight")
		s.mu.Unlock()
		return nil
	}
	if errs := s.form.Validate(); len(errs) > 0 {
		s.mu.Unlock()
		return &ValidationError{Fields: errs}
	}

	snap := s.cart.Snapshot()
	if len(snap.Items) == 0 {
		s.mu.Unlock()
		return ErrEmptyCart
	}

	s.submitting = true
	draft := s.buildDraft(snap)
	s.mu.Unlock()

	created, err := s.orders.Create(ctx, draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false

	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	s.orderID = created.ID
	s.orderCreatedAt = created.CreatedAt
	s.step = domain.StepPayment
	s.log.Info("order created, moving to payment", "order_id", created.ID, "total", created.Total)
	return nil
}

// SelectPaymentMethod requests a payment intent for the method, exactly
// once per selection. While a request is in flight, further calls are
// silent no-ops; re-selecting the method that already has a secret returns
// the cached intent.
func (s *Session) SelectPaymentMethod(ctx context.Context, method string) (domain.PaymentIntent, error) {
	s.mu.Lock()
	if s.step != domain.StepPayment {
		s.mu.Unlock()
		return domain.PaymentIntent{}, ErrWrongStep
	}
	if s.intent.ClientSecret != "" && s.intentMethod == method {
		intent := s.intent
		s.mu.Unlock()
		return intent, nil
	}
	if s.creatingIntent {
		s.log.Debug("intent creation already in flight, ignoring", "method", method)
		s.mu.Unlock()
		return domain.PaymentIntent{}, nil
	}
	s.creatingIntent = true
	s.intent = domain.PaymentIntent{}
	orderID := s.orderID
	email := s.form.Email
	s.mu.Unlock()

	intent, err := s.createIntent(ctx, orderID, method, email)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creatingIntent = false

	if err != nil {
		return domain.PaymentIntent{}, err
	}

	s.intent = intent
	s.intentMethod = method
	return intent, nil
}

func (s *Session) createIntent(ctx context.Context, orderID, method, email string) (domain.PaymentIntent, error) {
	total, err := s.orders.AuthoritativeTotal(ctx, orderID)
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("compute charge amount: %w", err)
	}

	intent, err := s.payments.CreateIntent(ctx, IntentRequest{
		OrderID:        orderID,
		Method:         method,
		Amount:         total,
		Email:          email,
		IdempotencyKey: ulid.Make().String(),
	})
	if err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return intent, nil
}

// PaymentSucceeded finalizes the checkout: the order is marked paid, the
// cart and promo snapshot are cleared, and the session lands on the
// success step still holding the order id for the confirmation page.
func (s *Session) PaymentSucceeded(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.step != domain.StepPayment {
		s.mu.Unlock()
		return "", ErrWrongStep
	}
	orderID := s.orderID
	s.mu.Unlock()

	if err := s.orders.MarkPaid(ctx, orderID); err != nil {
		return "", fmt.Errorf("mark order paid: %w", err)
	}

	s.cart.Clear()
	s.promo.Clear()

	s.mu.Lock()
	s.step = domain.StepSuccess
	s.flags.Set(s.cancelKey(), false)
	s.mu.Unlock()

	s.log.Info("payment succeeded", "order_id", orderID)
	return orderID, nil
}

// PaymentFailed records the failure and keeps the session on the payment
// step with cart and order intact, so the user can retry.
func (s *Session) PaymentFailed(ctx context.Context, reason string) {
	s.mu.Lock()
	orderID := s.orderID
	s.mu.Unlock()

	if orderID != "" {
		if err := s.orders.MarkPaymentFailed(ctx, orderID); err != nil {
			s.log.Error("could not record payment failure", "order_id", orderID, "err", err)
		}
	}
	s.log.Warn("payment failed", "order_id", orderID, "reason", reason)
}

// MarkPaymentCancelled persists the user-aborted-payment flag; the next
// Load restores the payment step instead of restarting checkout.
func (s *Session) MarkPaymentCancelled() {
	s.flags.Set(s.cancelKey(), true)
	s.log.Info("payment cancelled by user", "order_id", s.OrderID())
}

// BackToDetails returns to the details step, releasing the submission lock
// and the cached intent. The order id survives for recovery.
func (s *Session) BackToDetails() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = domain.StepDetails
	s.submitting = false
	s.intent = domain.PaymentIntent{}
	s.intentMethod = ""
}

// Restore loads a recovered order into the session: cart replaced
// wholesale, form pre-filled, step set straight to payment.
func (s *Session) Restore(items []cartdomain.Item, form *domain.Form, orderID string, orderCreatedAt time.Time) {
	s.cart.Replace(items)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = form
	s.orderID = orderID
	s.orderCreatedAt = orderCreatedAt
	s.step = domain.StepPayment
}

// Totals derives the display totals for the session's current cart and
// promo state.
func (s *Session) Totals(ctx context.Context) (pricing.Totals, error) {
	st, err := s.settings.Current(ctx)
	if err != nil {
		return pricing.Totals{}, fmt.Errorf("load settings: %w", err)
	}

	discount := decimal.Zero
	if applied, ok := s.promo.Current(); ok {
		discount = applied.Amount
	}

	return pricing.ComputeTotals(s.cart.Subtotal(), discount, st.ShippingCost, st.FreeShippingThreshold), nil
}

func (s *Session) buildDraft(snap cartapp.Snapshot) OrderDraft {
	addr := Address{
		Name:        s.form.FirstName + " " + s.form.LastName,
		Street:      s.form.Street,
		HouseNumber: s.form.HouseNumber,
		Addition:    s.form.Addition,
		Postcode:    s.form.Postcode,
		City:        s.form.City,
		Country:     s.form.Country,
	}

	draft := OrderDraft{
		Email:           s.form.Email,
		ShippingAddress: addr,
		BillingAddress:  addr,
	}
	if applied, ok := s.promo.Current(); ok {
		draft.PromoCode = applied.Code
		draft.DiscountAmount = applied.Amount
	} else {
		draft.DiscountAmount = decimal.Zero
	}

	for _, it := range snap.Items {
		draft.Lines = append(draft.Lines, OrderLine{
			ProductID:           it.ProductID,
			VariantID:           it.VariantID,
			ProductName:         it.Name,
			Size:                it.Size,
			Color:               it.Color,
			SKU:                 it.SKU,
			Quantity:            it.Quantity,
			UnitPrice:           it.UnitPrice,
			ImageURL:            it.Image,
			IsPresale:           it.IsPresale,
			PresaleExpectedDate: it.PresaleExpectedDate,
		})
	}
	return draft
}

func (s *Session) cancelKey() string {
	return "payment-cancelled:" + s.id
}

func promoLines(items []cartdomain.Item) []promoapp.CartLine {
	lines := make([]promoapp.CartLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, promoapp.CartLine{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return lines
}
