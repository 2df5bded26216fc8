package session

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/seedling/pitch-platform/internal/auth"
	"github.com/seedling/pitch-platform/internal/schemas"
)

var ErrAnonymous = errors.New("not logged in")

// Purger is the slice of the request cache the store needs: on logout every
// cached response is dropped so nothing leaks across sessions.
type Purger interface {
	Purge()
}

// Store holds the session token. It is either anonymous or authenticated,
// never in between: a token that fails to decode is rejected outright.
type Store struct {
	mu     sync.RWMutex
	path   string
	token  string
	claims *auth.Claims
	cache  Purger
}

// New creates a store persisting its token at path. cache may be nil.
func New(path string, cache Purger) *Store {
	return &Store{path: path, cache: cache}
}

// Hydrate loads a previously persisted token. An expired or undecodable
// token is deleted and the store stays anonymous; that is not an error.
func (s *Store) Hydrate() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	token := string(raw)
	claims, err := auth.DecodeUnverified(token)
	if err != nil {
		_ = os.Remove(s.path)
		return nil
	}
	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()
	return nil
}

// Login stores a freshly issued token. Decode failure leaves the store
// anonymous and is returned to the caller; a half-authenticated state is
// never allowed.
func (s *Store) Login(token string) error {
	claims, err := auth.DecodeUnverified(token)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()
	return nil
}

// Logout discards the token and purges the bound cache.
func (s *Store) Logout() {
	s.mu.Lock()
	s.token = ""
	s.claims = nil
	s.mu.Unlock()
	_ = os.Remove(s.path)
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the raw bearer token, empty when anonymous.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Role returns the session role, empty when anonymous.
func (s *Store) Role() schemas.UserRole {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return ""
	}
	return schemas.UserRole(s.claims.Role)
}

// UserID returns the authenticated user's id.
func (s *Store) UserID() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return 0, ErrAnonymous
	}
	return strconv.ParseInt(s.claims.Subject, 10, 64)
}
