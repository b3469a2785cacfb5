package app

import (
	"sync"

	cartapp "github.com/bloemendal/storefront/internal/cart/app"
	promoapp "github.com/bloemendal/storefront/internal/promo/app"
	"github.com/google/uuid"
)

// Manager owns the live checkout sessions, one cart store and promo
// session per checkout.
type Manager struct {
	deps      Deps
	validator promoapp.Validator

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps, validator promoapp.Validator) *Manager {
	return &Manager{
		deps:      deps,
		validator: validator,
		sessions:  make(map[string]*Session),
	}
}

func (m *Manager) Create() *Session {
	id := uuid.NewString()
	cart := cartapp.NewStore()
	promo := promoapp.NewSession(m.validator, m.deps.Log.With("session_id", id))
	s := NewSession(id, cart, promo, m.deps)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Drop(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
