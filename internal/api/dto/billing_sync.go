package dto

import (
	"strings"
	"time"

	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/types"
	"github.com/nutriplan/nutriplan/internal/validator"
	"github.com/samber/lo"
)

// IncrementalSyncOptions controls a watermark driven run. Since overrides the
// stored watermark; LookbackHours applies only when neither is available.
type IncrementalSyncOptions struct {
	LookbackHours int        `json:"lookback_hours,omitempty" validate:"min=0,max=8760"`
	Since         *time.Time `json:"since,omitempty"`
	Until         *time.Time `json:"until,omitempty"`
}

func (o *IncrementalSyncOptions) Validate() error {
	if err := validator.ValidateRequest(o); err != nil {
		return err
	}
	return validateWindow(o.Since, o.Until)
}

// ManualSyncOptions targets specific accounts
type ManualSyncOptions struct {
	UserIDs         []string   `json:"user_ids,omitempty"`
	Emails          []string   `json:"emails,omitempty" validate:"omitempty,dive,email"`
	SubscriptionIDs []string   `json:"subscription_ids,omitempty"`
	Since           *time.Time `json:"since,omitempty"`
	Until           *time.Time `json:"until,omitempty"`
}

func (o *ManualSyncOptions) Validate() error {
	o.UserIDs = cleanList(o.UserIDs, false)
	o.Emails = cleanList(o.Emails, true)
	o.SubscriptionIDs = cleanList(o.SubscriptionIDs, false)

	if err := validator.ValidateRequest(o); err != nil {
		return err
	}

	if len(o.UserIDs) == 0 && len(o.Emails) == 0 && len(o.SubscriptionIDs) == 0 {
		return ierr.NewError("manual sync requires a target").
			WithHint("Provide at least one user id, email or subscription id").
			Mark(ierr.ErrValidation)
	}
	return validateWindow(o.Since, o.Until)
}

func validateWindow(since, until *time.Time) error {
	if since != nil && until != nil && until.Before(*since) {
		return ierr.NewError("until is before since").
			WithHint("The sync window end must not be before its start").
			WithReportableDetails(map[string]interface{}{
				"since": since,
				"until": until,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

func cleanList(values []string, lower bool) []string {
	cleaned := lo.FilterMap(values, func(v string, _ int) (string, bool) {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		return v, v != ""
	})
	return lo.Uniq(cleaned)
}

// SyncResult is the aggregate outcome of one billing sync run
type SyncResult struct {
	Mode                      types.SyncMode `json:"mode"`
	SubscriptionsFetched      int            `json:"subscriptions_fetched"`
	SubscriptionsPersisted    int            `json:"subscriptions_persisted"`
	PaymentsFetched           int            `json:"payments_fetched"`
	PaymentsInserted          int            `json:"payments_inserted"`
	PaymentsSkipped           int            `json:"payments_skipped"`
	UsersMatched              int            `json:"users_matched"`
	UsersMissing              int            `json:"users_missing"`
	UnmappedPlans             int            `json:"unmapped_plans"`
	Errors                    int            `json:"errors"`
	StartedAt                 time.Time      `json:"started_at"`
	FinishedAt                time.Time      `json:"finished_at"`
	Since                     *time.Time     `json:"since,omitempty"`
	Until                     *time.Time     `json:"until,omitempty"`
	LastSubscriptionTimestamp *time.Time     `json:"last_subscription_timestamp,omitempty"`
	LastPaymentTimestamp      *time.Time     `json:"last_payment_timestamp,omitempty"`
}

// Watermark returns the newest observed event time, or nil when nothing was observed
func (r *SyncResult) Watermark() *time.Time {
	switch {
	case r.LastSubscriptionTimestamp == nil:
		return r.LastPaymentTimestamp
	case r.LastPaymentTimestamp == nil:
		return r.LastSubscriptionTimestamp
	case r.LastPaymentTimestamp.After(*r.LastSubscriptionTimestamp):
		return r.LastPaymentTimestamp
	default:
		return r.LastSubscriptionTimestamp
	}
}

// TokenMetadataResponse describes the access token in use
type TokenMetadataResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Source    string    `json:"source"`
}
