package testutil

import (
	"context"
	"strings"
	"sync"

	ierr "github.com/nutriplan/nutriplan/internal/errors"
)

// InMemoryUserStore implements user.Repository and counts lookups
type InMemoryUserStore struct {
	mu      sync.Mutex
	byEmail map[string]string
	calls   int

	// LookupErr, when set, is returned by every lookup
	LookupErr error
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{byEmail: make(map[string]string)}
}

// AddUser registers a profile
func (s *InMemoryUserStore) AddUser(id, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEmail[strings.ToLower(email)] = id
}

func (s *InMemoryUserStore) FindIDByEmail(_ context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.LookupErr != nil {
		return "", s.LookupErr
	}
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return "", ierr.NewError("user not found").Mark(ierr.ErrNotFound)
	}
	return id, nil
}

// Calls returns the number of lookups performed
func (s *InMemoryUserStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
