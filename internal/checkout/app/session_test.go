package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	cartapp "github.com/bloemendal/storefront/internal/cart/app"
	cartdomain "github.com/bloemendal/storefront/internal/cart/domain"
	"github.com/bloemendal/storefront/internal/checkout/domain"
	"github.com/bloemendal/storefront/internal/checkout/infra/memflag"
	promoapp "github.com/bloemendal/storefront/internal/promo/app"
	"github.com/bloemendal/storefront/internal/settings"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeOrders struct {
	mu          sync.Mutex
	createCalls int
	createdAt   time.Time
	blockCreate chan struct{}
	paid        []string
	failed      []string
	total       decimal.Decimal
}

func (f *fakeOrders) Create(ctx context.Context, draft OrderDraft) (CreatedOrder, error) {
	f.mu.Lock()
	f.createCalls++
	block := f.blockCreate
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return CreatedOrder{ID: "order-1", Total: f.total, CreatedAt: f.createdAt}, nil
}

func (f *fakeOrders) AuthoritativeTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	return f.total, nil
}

func (f *fakeOrders) MarkPaid(ctx context.Context, orderID string) error {
	f.mu.Lock()
	f.paid = append(f.paid, orderID)
	f.mu.Unlock()
	return nil
}

func (f *fakeOrders) MarkPaymentFailed(ctx context.Context, orderID string) error {
	f.mu.Lock()
	f.failed = append(f.failed, orderID)
	f.mu.Unlock()
	return nil
}

type fakePayments struct {
	mu      sync.Mutex
	calls   int
	lastReq IntentRequest
	entered chan struct{}
	release chan struct{}
}

func (f *fakePayments) CreateIntent(ctx context.Context, req IntentRequest) (domain.PaymentIntent, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if release != nil {
		<-release
	}
	return domain.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

type fakeLookup struct{}

func (fakeLookup) Lookup(ctx context.Context, postcode, houseNumber, addition string) (LookupResult, error) {
	return LookupResult{Street: "Hoofdstraat", City: "Groningen", FullAddress: "Hoofdstraat " + houseNumber}, nil
}

type okValidator struct{}

func (okValidator) Validate(ctx context.Context, code string, total decimal.Decimal, lines []promoapp.CartLine) (promoapp.Result, error) {
	return promoapp.Result{Valid: true, Amount: decimal.Zero}, nil
}

func newTestSession(t *testing.T, orders *fakeOrders, payments *fakePayments) *Session {
	t.Helper()
	log := slog.Default()

	deps := Deps{
		Settings: settings.NewStatic(settings.Settings{
			ShippingCost:          dec("5.95"),
			FreeShippingThreshold: dec("100"),
		}),
		Orders:   orders,
		Payments: payments,
		Lookup:   fakeLookup{},
		Flags:    memflag.New(),
		Log:      log,
	}

	cart := cartapp.NewStore()
	promo := promoapp.NewSession(okValidator{}, log)
	return NewSession("sess-1", cart, promo, deps)
}

func fillValidForm(s *Session) {
	s.SetField(domain.FieldEmail, "jan@voorbeeld.nl")
	s.SetField(domain.FieldFirstName, "Jan")
	s.SetField(domain.FieldLastName, "de Vries")
	s.SetField(domain.FieldPostcode, "9713EW")
	s.SetField(domain.FieldHouseNumber, "12")
	s.SetField(domain.FieldStreet, "Hoofdstraat")
	s.SetField(domain.FieldCity, "Groningen")
}

func addItem(s *Session) {
	s.Cart().Add(cartdomain.Item{
		ProductID: "p1",
		VariantID: "v1",
		Name:      "Wollen trui",
		UnitPrice: dec("49.99"),
		Quantity:  1,
		Stock:     10,
	})
}

func submitToPayment(t *testing.T, s *Session) {
	t.Helper()
	fillValidForm(s)
	addItem(s)
	if err := s.SubmitDetails(context.Background()); err != nil {
		t.Fatalf("SubmitDetails failed: %v", err)
	}
	if s.Step() != domain.StepPayment {
		t.Fatalf("step = %s, want payment", s.Step())
	}
}

func TestSubmitDetails(t *testing.T) {
	t.Run("invalid form blocks submission", func(t *testing.T) {
		orders := &fakeOrders{total: dec("49.99")}
		s := newTestSession(t, orders, &fakePayments{})
		addItem(s)

		err := s.SubmitDetails(context.Background())
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if orders.createCalls != 0 {
			t.Fatal("order created despite invalid form")
		}
	})

	t.Run("empty cart blocks submission", func(t *testing.T) {
		s := newTestSession(t, &fakeOrders{total: dec("0")}, &fakePayments{})
		fillValidForm(s)
		if err := s.SubmitDetails(context.Background()); !errors.Is(err, ErrEmptyCart) {
			t.Fatalf("expected ErrEmptyCart, got %v", err)
		}
	})

	t.Run("duplicate submit while in flight is a no-op", func(t *testing.T) {
		orders := &fakeOrders{total: dec("49.99"), blockCreate: make(chan struct{})}
		s := newTestSession(t, orders, &fakePayments{})
		fillValidForm(s)
		addItem(s)

		done := make(chan error, 1)
		go func() { done <- s.SubmitDetails(context.Background()) }()

		// Wait until the first submit is inside Create.
		for {
			orders.mu.Lock()
			n := orders.createCalls
			orders.mu.Unlock()
			if n == 1 {
				break
			}
			time.Sleep(time.Millisecond)
		}

		if err := s.SubmitDetails(context.Background()); err != nil {
			t.Fatalf("duplicate submit returned error: %v", err)
		}

		close(orders.blockCreate)
		if err := <-done; err != nil {
			t.Fatalf("first submit failed: %v", err)
		}

		if orders.createCalls != 1 {
			t.Fatalf("create called %d times, want 1", orders.createCalls)
		}
	})
}

func TestSelectPaymentMethod(t *testing.T) {
	t.Run("intent carries the server total and an idempotency key", func(t *testing.T) {
		orders := &fakeOrders{total: dec("55.94")}
		payments := &fakePayments{}
		s := newTestSession(t, orders, payments)
		submitToPayment(t, s)

		intent, err := s.SelectPaymentMethod(context.Background(), "ideal")
		if err != nil {
			t.Fatalf("SelectPaymentMethod failed: %v", err)
		}
		if intent.ClientSecret == "" {
			t.Fatal("no client secret returned")
		}
		if !payments.lastReq.Amount.Equal(dec("55.94")) {
			t.Fatalf("charge amount = %s, want server total 55.94", payments.lastReq.Amount)
		}
		if payments.lastReq.IdempotencyKey == "" {
			t.Fatal("missing idempotency key")
		}
	})

	t.Run("rapid double selection creates exactly one intent", func(t *testing.T) {
		orders := &fakeOrders{total: dec("49.99")}
		payments := &fakePayments{
			entered: make(chan struct{}),
			release: make(chan struct{}),
		}
		s := newTestSession(t, orders, payments)
		submitToPayment(t, s)

		done := make(chan struct{})
		go func() {
			defer close(done)
			if _, err := s.SelectPaymentMethod(context.Background(), "ideal"); err != nil {
				t.Errorf("first selection failed: %v", err)
			}
		}()
		<-payments.entered

		// Second click while the first request is still in flight.
		intent, err := s.SelectPaymentMethod(context.Background(), "ideal")
		if err != nil {
			t.Fatalf("second selection returned error: %v", err)
		}
		if intent.ClientSecret != "" {
			t.Fatal("second selection must not produce an intent")
		}

		close(payments.release)
		<-done

		if payments.calls != 1 {
			t.Fatalf("CreateIntent called %d times, want 1", payments.calls)
		}
	})

	t.Run("re-selecting the same method returns the cached intent", func(t *testing.T) {
		orders := &fakeOrders{total: dec("49.99")}
		payments := &fakePayments{}
		s := newTestSession(t, orders, payments)
		submitToPayment(t, s)

		first, err := s.SelectPaymentMethod(context.Background(), "ideal")
		if err != nil {
			t.Fatalf("SelectPaymentMethod failed: %v", err)
		}
		second, err := s.SelectPaymentMethod(context.Background(), "ideal")
		if err != nil {
			t.Fatalf("SelectPaymentMethod failed: %v", err)
		}
		if first != second {
			t.Fatalf("cached intent not returned: %+v vs %+v", first, second)
		}
		if payments.calls != 1 {
			t.Fatalf("CreateIntent called %d times, want 1", payments.calls)
		}
	})

	t.Run("not allowed outside payment step", func(t *testing.T) {
		s := newTestSession(t, &fakeOrders{total: dec("1")}, &fakePayments{})
		if _, err := s.SelectPaymentMethod(context.Background(), "ideal"); !errors.Is(err, ErrWrongStep) {
			t.Fatalf("expected ErrWrongStep, got %v", err)
		}
	})
}

func TestPaymentOutcome(t *testing.T) {
	t.Run("success clears cart and finishes", func(t *testing.T) {
		orders := &fakeOrders{total: dec("49.99")}
		s := newTestSession(t, orders, &fakePayments{})
		submitToPayment(t, s)

		orderID, err := s.PaymentSucceeded(context.Background())
		if err != nil {
			t.Fatalf("PaymentSucceeded failed: %v", err)
		}
		if orderID != "order-1" {
			t.Fatalf("orderID = %s, want order-1", orderID)
		}
		if s.Step() != domain.StepSuccess {
			t.Fatalf("step = %s, want success", s.Step())
		}
		if len(s.Cart().Items()) != 0 {
			t.Fatal("cart not cleared after success")
		}
		if len(orders.paid) != 1 {
			t.Fatalf("order not marked paid: %v", orders.paid)
		}
	})

	t.Run("failure keeps cart, order and step", func(t *testing.T) {
		orders := &fakeOrders{total: dec("49.99")}
		s := newTestSession(t, orders, &fakePayments{})
		submitToPayment(t, s)

		s.PaymentFailed(context.Background(), "card declined")

		if s.Step() != domain.StepPayment {
			t.Fatalf("step = %s, want payment", s.Step())
		}
		if len(s.Cart().Items()) == 0 {
			t.Fatal("cart cleared on failure")
		}
		if s.OrderID() != "order-1" {
			t.Fatal("order id lost on failure")
		}
	})
}

func TestCancellationRestore(t *testing.T) {
	orders := &fakeOrders{total: dec("49.99")}
	s := newTestSession(t, orders, &fakePayments{})
	submitToPayment(t, s)

	// User closes the payment sheet; the flag is persisted and the session
	// restarts at details on the next visit.
	s.MarkPaymentCancelled()
	s.BackToDetails()

	s.Load(context.Background())

	if s.Step() != domain.StepPayment {
		t.Fatalf("step = %s, want payment restored from cancel flag", s.Step())
	}
	if s.OrderID() != "order-1" {
		t.Fatal("restored session lost its order")
	}
}

func TestStalenessGuard(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("stale session drops the intent", func(t *testing.T) {
		orders := &fakeOrders{total: dec("49.99"), createdAt: start}
		s := newTestSession(t, orders, &fakePayments{})
		s.now = func() time.Time { return start }
		s.startedAt = start
		submitToPayment(t, s)

		if _, err := s.SelectPaymentMethod(context.Background(), "ideal"); err != nil {
			t.Fatalf("SelectPaymentMethod failed: %v", err)
		}

		s.now = func() time.Time { return start.Add(2 * time.Hour) }
		s.Load(context.Background())

		if s.Step() != domain.StepDetails {
			t.Fatalf("step = %s, want details after staleness", s.Step())
		}
		if s.Intent().ClientSecret != "" {
			t.Fatal("stale client secret still cached")
		}
	})

	t.Run("freshly created order is exempt", func(t *testing.T) {
		// Session is old, but the order was created moments ago.
		created := start.Add(90 * time.Minute)
		orders := &fakeOrders{total: dec("49.99"), createdAt: created}
		s := newTestSession(t, orders, &fakePayments{})
		s.now = func() time.Time { return created }
		s.startedAt = start
		submitToPayment(t, s)

		if _, err := s.SelectPaymentMethod(context.Background(), "ideal"); err != nil {
			t.Fatalf("SelectPaymentMethod failed: %v", err)
		}

		s.now = func() time.Time { return created.Add(time.Minute) }
		s.Load(context.Background())

		if s.Step() != domain.StepPayment {
			t.Fatalf("step = %s, want payment for fresh order", s.Step())
		}
	})
}
