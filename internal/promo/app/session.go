package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bloemendal/storefront/internal/promo/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCode = errors.New("promo code is empty")
	ErrRejected  = errors.New("promo code rejected")
)

// Session holds the applied promo snapshot for one checkout session. The
// snapshot survives page reloads on the client; here it lives for the
// lifetime of the server-side session that owns it.
type Session struct {
	validator Validator
	log       *slog.Logger

	mu      sync.Mutex
	applied *domain.Applied
	seq     uint64
}

func NewSession(validator Validator, log *slog.Logger) *Session {
	return &Session{
		validator: validator,
		log:       log,
	}
}

// Apply validates a user-entered code against the current subtotal and, on
// success, stores the snapshot. Codes are case-normalized to uppercase.
func (s *Session) Apply(ctx context.Context, code string, subtotal decimal.Decimal, lines []CartLine) (domain.Applied, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.Applied{}, ErrEmptyCode
	}

	res, err := s.validator.Validate(ctx, code, subtotal, lines)
	if err != nil {
		return domain.Applied{}, fmt.Errorf("validate promo code %s: %w", code, err)
	}
	if !res.Valid {
		return domain.Applied{}, fmt.Errorf("%w: %s", ErrRejected, res.Reason)
	}

	applied := domain.Applied{
		Code:   code,
		Type:   res.Type,
		Value:  res.Value,
		Amount: res.Amount,
	}

	s.mu.Lock()
	s.applied = &applied
	s.seq++
	s.mu.Unlock()

	return applied, nil
}

// Revalidate re-submits the stored code against a changed subtotal. It must
// be called on every subtotal or item-count change. A business rejection
// clears the snapshot entirely; a transport failure keeps the known
// type/value and recomputes the amount locally. Each call is tagged with a
// sequence number so a response for a superseded subtotal can never
// overwrite a newer one.
func (s *Session) Revalidate(ctx context.Context, subtotal decimal.Decimal, lines []CartLine) (domain.Applied, bool) {
	s.mu.Lock()
	if s.applied == nil {
		s.mu.Unlock()
		return domain.Applied{}, false
	}
	s.seq++
	my := s.seq
	code := s.applied.Code
	s.mu.Unlock()

	res, err := s.validator.Validate(ctx, code, subtotal, lines)

	s.mu.Lock()
	defer s.mu.Unlock()

	if my != s.seq {
		s.log.Debug("discarding superseded promo revalidation", "code", code)
		return s.current()
	}
	if s.applied == nil {
		return domain.Applied{}, false
	}

	if err != nil {
		// Transport failure, not a validity verdict: recompute the amount
		// from the known type/value so the figure tracks the new subtotal.
		s.applied.Amount = domain.ComputeDiscount(s.applied.Type, s.applied.Value, subtotal)
		s.log.Warn("promo revalidation failed, recomputed locally",
			"code", code, "err", err, "amount", s.applied.Amount)
		return *s.applied, true
	}

	if !res.Valid {
		s.log.Info("promo code no longer valid, clearing", "code", code, "reason", res.Reason)
		s.applied = nil
		return domain.Applied{}, false
	}

	s.applied.Type = res.Type
	s.applied.Value = res.Value
	s.applied.Amount = res.Amount
	return *s.applied, true
}

func (s *Session) Current() (domain.Applied, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

func (s *Session) Clear() {
	s.mu.Lock()
	s.applied = nil
	s.seq++
	s.mu.Unlock()
}

func (s *Session) current() (domain.Applied, bool) {
	if s.applied == nil {
		return domain.Applied{}, false
	}
	return *s.applied, true
}
