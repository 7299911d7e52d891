package subscription

import (
	ierr "github.com/nutriplan/nutriplan/internal/errors"
)

var errMissingUserID = ierr.NewError("subscription user id is required").
	WithHint("Subscription must belong to a user").
	Mark(ierr.ErrValidation)

func errPaidPlanNotActive(s *Subscription) error {
	return ierr.NewError("paid plan on inactive subscription").
		WithHint("Only active subscriptions can hold a paid plan").
		WithReportableDetails(map[string]interface{}{
			"plan":                     s.Plan,
			"status":                   s.Status,
			"provider_subscription_id": s.ProviderSubscriptionID,
		}).
		Mark(ierr.ErrValidation)
}
