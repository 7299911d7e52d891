package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "memory", cfg.TokenStore.Type)
	assert.Equal(t, "https://public-api.kiwify.com/v1", cfg.Kiwify.BaseURL)
	assert.Equal(t, 100, cfg.Kiwify.RequestsPerMinute)
	assert.Equal(t, 60*time.Second, cfg.Kiwify.TokenSafetyMargin)
	assert.Equal(t, 24, cfg.BillingSync.DefaultLookbackHours)
	assert.Equal(t, 5*time.Minute, cfg.BillingSync.Overlap)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownTokenStore(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.TokenStore.Type = "memcached"
	assert.Error(t, cfg.Validate())
}

func TestNewConfigEnvOverride(t *testing.T) {
	t.Setenv("NUTRIPLAN_KIWIFY_ACCOUNT_ID", "acc_123")
	t.Setenv("NUTRIPLAN_BILLING_SYNC_DEFAULT_LOOKBACK_HOURS", "48")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "acc_123", cfg.Kiwify.AccountID)
	assert.Equal(t, 48, cfg.BillingSync.DefaultLookbackHours)
}
