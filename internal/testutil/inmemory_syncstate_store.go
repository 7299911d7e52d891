package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/nutriplan/nutriplan/internal/domain/syncstate"
)

// InMemorySyncStateStore implements syncstate.Repository
type InMemorySyncStateStore struct {
	*InMemoryStore[*syncstate.SyncState]
}

func NewInMemorySyncStateStore() *InMemorySyncStateStore {
	return &InMemorySyncStateStore{
		InMemoryStore: NewInMemoryStore[*syncstate.SyncState](),
	}
}

func (s *InMemorySyncStateStore) Get(ctx context.Context, id string) (*syncstate.SyncState, error) {
	state, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	copied := *state
	return &copied, nil
}

func (s *InMemorySyncStateStore) Save(ctx context.Context, state *syncstate.SyncState) error {
	if state.ID == "" {
		state.ID = syncstate.DefaultID
	}
	state.UpdatedAt = time.Now().UTC()
	copied := *state
	s.Upsert(ctx, state.ID, &copied)
	return nil
}

// InMemoryLocker implements syncstate.Locker within one process
type InMemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{held: make(map[string]bool)}
}

func (l *InMemoryLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}
