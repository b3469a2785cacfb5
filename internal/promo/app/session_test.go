package app

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/bloemendal/storefront/internal/promo/domain"
	"github.com/shopspring/decimal"
)

type fakeValidator struct {
	fn func(code string, orderTotal decimal.Decimal) (Result, error)
}

func (f *fakeValidator) Validate(ctx context.Context, code string, orderTotal decimal.Decimal, lines []CartLine) (Result, error) {
	return f.fn(code, orderTotal)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func percentOff(value string) func(string, decimal.Decimal) (Result, error) {
	v := dec(value)
	return func(code string, total decimal.Decimal) (Result, error) {
		return Result{
			Valid:  true,
			Type:   domain.DiscountPercentage,
			Value:  v,
			Amount: domain.ComputeDiscount(domain.DiscountPercentage, v, total),
		}, nil
	}
}

func TestSessionApply(t *testing.T) {
	log := slog.Default()

	t.Run("uppercases the code", func(t *testing.T) {
		var seen string
		s := NewSession(&fakeValidator{fn: func(code string, total decimal.Decimal) (Result, error) {
			seen = code
			return percentOff("10")(code, total)
		}}, log)

		applied, err := s.Apply(context.Background(), "  zomer10 ", dec("50"), nil)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if seen != "ZOMER10" || applied.Code != "ZOMER10" {
			t.Fatalf("code not normalized: sent %q, stored %q", seen, applied.Code)
		}
	})

	t.Run("empty code", func(t *testing.T) {
		s := NewSession(&fakeValidator{}, log)
		if _, err := s.Apply(context.Background(), "   ", dec("50"), nil); !errors.Is(err, ErrEmptyCode) {
			t.Fatalf("expected ErrEmptyCode, got %v", err)
		}
	})

	t.Run("rejection does not store a snapshot", func(t *testing.T) {
		s := NewSession(&fakeValidator{fn: func(string, decimal.Decimal) (Result, error) {
			return Result{Valid: false, Reason: "minimum order value not met"}, nil
		}}, log)

		if _, err := s.Apply(context.Background(), "WELKOM", dec("10"), nil); !errors.Is(err, ErrRejected) {
			t.Fatalf("expected ErrRejected, got %v", err)
		}
		if _, ok := s.Current(); ok {
			t.Fatal("rejected code must not be stored")
		}
	})

	t.Run("same code at same subtotal yields same amount", func(t *testing.T) {
		s := NewSession(&fakeValidator{fn: percentOff("15")}, log)

		first, err := s.Apply(context.Background(), "VAST15", dec("80"), nil)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		second, err := s.Apply(context.Background(), "VAST15", dec("80"), nil)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if !first.Amount.Equal(second.Amount) {
			t.Fatalf("amounts differ: %s vs %s", first.Amount, second.Amount)
		}
	})
}

func TestSessionRevalidate(t *testing.T) {
	log := slog.Default()

	t.Run("no snapshot is a no-op", func(t *testing.T) {
		s := NewSession(&fakeValidator{}, log)
		if _, ok := s.Revalidate(context.Background(), dec("50"), nil); ok {
			t.Fatal("expected no applied promo")
		}
	})

	t.Run("percentage tracks the new subtotal", func(t *testing.T) {
		s := NewSession(&fakeValidator{fn: percentOff("10")}, log)
		if _, err := s.Apply(context.Background(), "TIEN", dec("100"), nil); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		applied, ok := s.Revalidate(context.Background(), dec("60"), nil)
		if !ok {
			t.Fatal("promo dropped unexpectedly")
		}
		if !applied.Amount.Equal(dec("6")) {
			t.Fatalf("amount = %s, want 6", applied.Amount)
		}
	})

	t.Run("rejection clears the snapshot entirely", func(t *testing.T) {
		calls := 0
		s := NewSession(&fakeValidator{fn: func(code string, total decimal.Decimal) (Result, error) {
			calls++
			if calls == 1 {
				return percentOff("10")(code, total)
			}
			return Result{Valid: false, Reason: "expired"}, nil
		}}, log)

		if _, err := s.Apply(context.Background(), "OUD", dec("100"), nil); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if _, ok := s.Revalidate(context.Background(), dec("90"), nil); ok {
			t.Fatal("expected promo to be cleared")
		}
		if _, ok := s.Current(); ok {
			t.Fatal("stale discount retained after rejection")
		}
	})

	t.Run("transport failure recomputes locally", func(t *testing.T) {
		calls := 0
		s := NewSession(&fakeValidator{fn: func(code string, total decimal.Decimal) (Result, error) {
			calls++
			if calls == 1 {
				return Result{
					Valid:  true,
					Type:   domain.DiscountFixed,
					Value:  dec("25"),
					Amount: dec("25"),
				}, nil
			}
			return Result{}, errors.New("connection refused")
		}}, log)

		if _, err := s.Apply(context.Background(), "MIN25", dec("100"), nil); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		// Subtotal dropped below the fixed value: the local recompute must
		// cap at the subtotal, not keep the stale 25.
		applied, ok := s.Revalidate(context.Background(), dec("18"), nil)
		if !ok {
			t.Fatal("promo dropped on transport failure")
		}
		if !applied.Amount.Equal(dec("18")) {
			t.Fatalf("amount = %s, want 18", applied.Amount)
		}
	})

	t.Run("superseded response is discarded", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		s := NewSession(&fakeValidator{fn: func(code string, total decimal.Decimal) (Result, error) {
			if total.Equal(dec("200")) {
				// Slow revalidation: resolve only after the newer one won.
				close(entered)
				<-release
			}
			return percentOff("10")(code, total)
		}}, log)

		if _, err := s.Apply(context.Background(), "TIEN", dec("100"), nil); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}

		done := make(chan domain.Applied, 1)
		go func() {
			got, _ := s.Revalidate(context.Background(), dec("200"), nil)
			done <- got
		}()
		<-entered

		applied, ok := s.Revalidate(context.Background(), dec("50"), nil)
		if !ok || !applied.Amount.Equal(dec("5")) {
			t.Fatalf("latest revalidation: amount = %s, want 5", applied.Amount)
		}

		close(release)
		<-done

		// The slow response for subtotal 200 must not overwrite the newer one.
		current, ok := s.Current()
		if !ok {
			t.Fatal("promo dropped")
		}
		if !current.Amount.Equal(dec("5")) {
			t.Fatalf("stale response won: amount = %s, want 5", current.Amount)
		}
	})
}
