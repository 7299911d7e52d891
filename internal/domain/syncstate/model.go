package syncstate

import (
	"context"
	"time"
)

// DefaultID is the key of the singleton billing sync state row
const DefaultID = "billing"

// SyncState holds the incremental sync watermark
type SyncState struct {
	ID           string
	LastSyncedAt *time.Time
	LastRunAt    *time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	// Get returns the state row or ErrNotFound before the first successful run
	Get(ctx context.Context, id string) (*SyncState, error)

	// Save upserts the state row
	Save(ctx context.Context, state *SyncState) error
}

// Locker provides cross-process mutual exclusion for sync runs.
// TryLock never blocks: ok is false when another holder has the key.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// NoopLocker always grants the lock
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}
