package logger

import (
	"context"
	"testing"

	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = "warn"

	log, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.Nil(t, log.fluentdLogger)
	assert.Equal(t, "nutriplan-local", log.serviceName)
}

func TestWithContextKeepsLoggerWhenEmpty(t *testing.T) {
	log := NewNopLogger()
	assert.Same(t, log, log.WithContext(context.Background()))

	ctx := types.SetSyncRunID(context.Background(), "sync_1")
	assert.NotSame(t, log, log.WithContext(ctx))
}

func TestKeysAndValuesToMap(t *testing.T) {
	fields := keysAndValuesToMap("a", 1, "b", "two", "dangling")
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "two"}, fields)
}
