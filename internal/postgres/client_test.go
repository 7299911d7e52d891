package postgres

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/nutriplan/nutriplan/internal/domain/syncstate"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSQLiteClient(t *testing.T) *Client {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	client, err := NewFromGorm(db, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNonPostgresDialect(t *testing.T) {
	client := newSQLiteClient(t)

	assert.Equal(t, "sqlite", client.Dialect())
	assert.NoError(t, client.Migrate())

	locker := NewLocker(client, logger.NewNopLogger())
	assert.IsType(t, syncstate.NoopLocker{}, locker)

	release, ok, err := locker.TryLock(context.Background(), "billing_sync")
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestIsLockTimeoutError(t *testing.T) {
	assert.False(t, isLockTimeoutError(nil))
	assert.False(t, isLockTimeoutError(assert.AnError))
}
