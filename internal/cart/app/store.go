package app

import (
	"sync"

	"github.com/bloemendal/storefront/internal/cart/domain"
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable view of the cart handed to change listeners.
type Snapshot struct {
	Items     []domain.Item
	Subtotal  decimal.Decimal
	ItemCount int
}

// Store is the cart for one checkout session. It is an explicit, injectable
// object with a single owner rather than a package-level singleton, so tests
// and sessions stay deterministic. Mutations are serialized by a mutex;
// the last write wins.
type Store struct {
	mu       sync.Mutex
	items    []domain.Item
	onChange []func(Snapshot)
}

func NewStore() *Store {
	return &Store{}
}

// OnChange registers a listener invoked after every mutation. Listeners are
// called outside the store lock with a snapshot of the new state; the promo
// revalidation trigger hangs off this hook.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Add merges the item into the cart. An existing variant has its quantity
// increased; quantities are clamped to known stock.
func (s *Store) Add(item domain.Item) {
	s.mu.Lock()
	merged := false
	for i := range s.items {
		if s.items[i].VariantID == item.VariantID {
			s.items[i].Quantity = clampToStock(s.items[i].Quantity+item.Quantity, s.items[i].Stock)
			merged = true
			break
		}
	}
	if !merged {
		item.Quantity = clampToStock(item.Quantity, item.Stock)
		s.items = append(s.items, item)
	}
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
}

// SetQuantity sets a variant's quantity; zero or less removes the line.
func (s *Store) SetQuantity(variantID string, quantity int) {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].VariantID != variantID {
			continue
		}
		if quantity <= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
		} else {
			s.items[i].Quantity = clampToStock(quantity, s.items[i].Stock)
		}
		break
	}
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) Remove(variantID string) {
	s.SetQuantity(variantID, 0)
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
}

// Replace swaps the cart contents wholesale. Order recovery uses this: the
// recovered order's items replace whatever the session had, never merge.
func (s *Store) Replace(items []domain.Item) {
	s.mu.Lock()
	s.items = make([]domain.Item, len(items))
	copy(s.items, items)
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) Items() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Subtotal is the sum of line totals before any discount, tax-inclusive.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return subtotal(s.items)
}

// ItemCount is the total quantity across all lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return itemCount(s.items)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() Snapshot {
	items := make([]domain.Item, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Items:     items,
		Subtotal:  subtotal(s.items),
		ItemCount: itemCount(s.items),
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	listeners := make([]func(Snapshot), len(s.onChange))
	copy(listeners, s.onChange)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func subtotal(items []domain.Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func itemCount(items []domain.Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func clampToStock(quantity, stock int) int {
	if stock > 0 && quantity > stock {
		return stock
	}
	return quantity
}
