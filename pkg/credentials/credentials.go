package credentials

import (
	"errors"
	"sync"
)

// Credential errors.
var (
	ErrNoCredential = errors.New("no credential available")
	ErrInvalidated  = errors.New("credential invalidated")
)

// Source supplies the current session token.
type Source interface {
	Token() (string, error)
}

// Valid reports whether src currently yields a usable token.
func Valid(src Source) bool {
	if src == nil {
		return false
	}
	token, err := src.Token()
	return err == nil && token != ""
}

// Static is a fixed token.
type Static string

// Token returns the token, or ErrNoCredential if it is empty.
func (s Static) Token() (string, error) {
	if s == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// MemoryStore holds a token that the session owner can replace or revoke.
type MemoryStore struct {
	mu          sync.RWMutex
	token       string
	invalidated bool
	onChange    []func(valid bool)
}

// NewMemoryStore creates a store holding token. An empty token means no
// credential until Set is called.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// Token returns the current token.
func (s *MemoryStore) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.invalidated {
		return "", ErrInvalidated
	}
	if s.token == "" {
		return "", ErrNoCredential
	}
	return s.token, nil
}

// Set replaces the token and clears a previous invalidation.
func (s *MemoryStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.invalidated = false
	listeners := s.onChange
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(token != "")
	}
}

// Invalidate revokes the current token.
func (s *MemoryStore) Invalidate() {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	listeners := s.onChange
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(false)
	}
}

// Invalidated reports whether the token was revoked.
func (s *MemoryStore) Invalidated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invalidated
}

// OnChange registers fn to be called after Set and Invalidate. Callbacks
// run on the caller's goroutine without the store lock held.
func (s *MemoryStore) OnChange(fn func(valid bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

var (
	_ Source = Static("")
	_ Source = (*MemoryStore)(nil)
	_ Source = (*FileStore)(nil)
)
