package subscription

import (
	"time"

	"github.com/nutriplan/nutriplan/internal/types"
)

// Subscription is the local ledger row mirroring a provider subscription.
// There is one logical row per user; the provider subscription id is the
// primary lookup key and the user id is the fallback.
type Subscription struct {
	ID                     string
	UserID                 string
	Plan                   types.SubscriptionPlan
	Status                 types.SubscriptionStatus
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       *time.Time
	Provider               types.BillingProvider
	ProviderOrderID        string
	ProviderSubscriptionID string
	ProviderPlanID         string
	LastEventAt            *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsActive returns true if the subscription grants a paid tier
func (s *Subscription) IsActive() bool {
	return s.Status == types.SubscriptionStatusActive
}

// Validate checks the entitlement invariant: a row that is not active must be on the free plan
func (s *Subscription) Validate() error {
	if err := s.Plan.Validate(); err != nil {
		return err
	}
	if err := s.Status.Validate(); err != nil {
		return err
	}
	if s.UserID == "" {
		return errMissingUserID
	}
	if !s.IsActive() && s.Plan != types.SubscriptionPlanFree {
		return errPaidPlanNotActive(s)
	}
	return nil
}
