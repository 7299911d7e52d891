package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanForStatus(t *testing.T) {
	tests := []struct {
		status SubscriptionStatus
		want   SubscriptionPlan
	}{
		{SubscriptionStatusActive, SubscriptionPlanPremiumAnnual},
		{SubscriptionStatusIncomplete, SubscriptionPlanFree},
		{SubscriptionStatusPastDue, SubscriptionPlanFree},
		{SubscriptionStatusCancelled, SubscriptionPlanFree},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, PlanForStatus(SubscriptionPlanPremiumAnnual, tt.status))
		})
	}
}

func TestEnumValidation(t *testing.T) {
	assert.NoError(t, SubscriptionPlanPremiumMonthly.Validate())
	assert.Error(t, SubscriptionPlan("gold").Validate())
	assert.NoError(t, SubscriptionStatusPastDue.Validate())
	assert.Error(t, SubscriptionStatus("paused").Validate())
	assert.NoError(t, TemporalBillingSyncWorkflow.Validate())
}

func TestGenerateLockKeyIsDeterministic(t *testing.T) {
	a := GenerateLockKey(LockScopeBillingSync, map[string]interface{}{"provider": "kiwify", "account": "acc"})
	b := GenerateLockKey(LockScopeBillingSync, map[string]interface{}{"account": "acc", "provider": "kiwify"})
	assert.Equal(t, a, b)
	assert.Equal(t, "billing_sync:account=acc:provider=kiwify", a)
}

func TestGenerateUUIDWithPrefix(t *testing.T) {
	id := GenerateUUIDWithPrefix(UUID_PREFIX_PAYMENT)
	assert.True(t, strings.HasPrefix(id, "pay_"))
	assert.Len(t, id, len("pay_")+26)
}
