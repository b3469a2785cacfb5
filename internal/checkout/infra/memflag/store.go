package memflag

import "sync"

// Store is an in-process flag store. The client-side original persists
// these flags in browser storage; server-side they live for the process.
type Store struct {
	mu    sync.Mutex
	flags map[string]bool
}

func New() *Store {
	return &Store{flags: make(map[string]bool)}
}

func (s *Store) Get(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[key]
}

func (s *Store) Set(key string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value {
		s.flags[key] = true
	} else {
		delete(s.flags, key)
	}
}
