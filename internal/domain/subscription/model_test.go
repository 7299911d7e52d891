package subscription

import (
	"testing"

	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestSubscriptionValidate(t *testing.T) {
	tests := []struct {
		name    string
		sub     Subscription
		wantErr bool
	}{
		{
			name: "active paid plan",
			sub:  Subscription{UserID: "u1", Plan: types.SubscriptionPlanPremiumAnnual, Status: types.SubscriptionStatusActive},
		},
		{
			name: "cancelled free plan",
			sub:  Subscription{UserID: "u1", Plan: types.SubscriptionPlanFree, Status: types.SubscriptionStatusCancelled},
		},
		{
			name:    "past due paid plan",
			sub:     Subscription{UserID: "u1", Plan: types.SubscriptionPlanPremiumMonthly, Status: types.SubscriptionStatusPastDue},
			wantErr: true,
		},
		{
			name:    "missing user",
			sub:     Subscription{Plan: types.SubscriptionPlanFree, Status: types.SubscriptionStatusIncomplete},
			wantErr: true,
		},
		{
			name:    "unknown status",
			sub:     Subscription{UserID: "u1", Plan: types.SubscriptionPlanFree, Status: "trialing"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sub.Validate()
			if tt.wantErr {
				assert.True(t, ierr.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
