package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/nutriplan/nutriplan/internal/domain/syncstate"
	"github.com/nutriplan/nutriplan/internal/logger"
)

// AdvisoryLocker implements syncstate.Locker with session level Postgres
// advisory locks. Each held lock pins one pooled connection until released.
type AdvisoryLocker struct {
	client *Client
	logger *logger.Logger
}

func NewAdvisoryLocker(client *Client, log *logger.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{client: client, logger: log}
}

// NewLocker returns an advisory locker on Postgres and a no-op locker on any other dialect
func NewLocker(client *Client, log *logger.Logger) syncstate.Locker {
	if client.Dialect() != DialectPostgres {
		return syncstate.NoopLocker{}
	}
	return NewAdvisoryLocker(client, log)
}

// TryLock tries acquiring the advisory lock for key immediately.
// Returns ok=false if the lock is already held elsewhere.
func (l *AdvisoryLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.client.SQL().Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve connection for lock: %w", err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, key).Scan(&ok); err != nil {
		_ = conn.Close()
		if isLockTimeoutError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}

	release := func() {
		// the caller's context may already be cancelled when releasing
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, key); err != nil {
			l.logger.Errorw("failed to release advisory lock", "key", key, "error", err)
		}
		_ = conn.Close()
	}

	return release, true, nil
}

// isLockTimeoutError checks if the error is a PostgreSQL lock timeout error
func isLockTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 55P03 = lock_not_available
		return pqErr.Code == "55P03"
	}

	return false
}
