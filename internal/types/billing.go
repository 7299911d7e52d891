package types

import (
	"fmt"
	"strings"

	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionPlan is the local entitlement tier a user is on
type SubscriptionPlan string

const (
	SubscriptionPlanFree             SubscriptionPlan = "free"
	SubscriptionPlanPremiumMonthly   SubscriptionPlan = "premium_monthly"
	SubscriptionPlanPremiumQuarterly SubscriptionPlan = "premium_quarterly"
	SubscriptionPlanPremiumAnnual    SubscriptionPlan = "premium_annual"
)

func (p SubscriptionPlan) String() string {
	return string(p)
}

func (p SubscriptionPlan) Validate() error {
	allowed := []SubscriptionPlan{
		SubscriptionPlanFree,
		SubscriptionPlanPremiumMonthly,
		SubscriptionPlanPremiumQuarterly,
		SubscriptionPlanPremiumAnnual,
	}
	if lo.Contains(allowed, p) {
		return nil
	}
	return ierr.NewError("invalid subscription plan").
		WithHint(fmt.Sprintf("Plan must be one of: %s", strings.Join(lo.Map(allowed, func(p SubscriptionPlan, _ int) string { return string(p) }), ", "))).
		WithReportableDetails(map[string]interface{}{"plan": p}).
		Mark(ierr.ErrValidation)
}

// SubscriptionStatus mirrors the status reported by the billing provider.
// Transitions: incomplete -> active -> {past_due, cancelled}; past_due -> active | cancelled.
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled  SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusIncomplete,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCancelled,
	}
	if lo.Contains(allowed, s) {
		return nil
	}
	return ierr.NewError("invalid subscription status").
		WithHint(fmt.Sprintf("Status must be one of: %s", strings.Join(lo.Map(allowed, func(s SubscriptionStatus, _ int) string { return string(s) }), ", "))).
		WithReportableDetails(map[string]interface{}{"status": s}).
		Mark(ierr.ErrValidation)
}

// PlanForStatus applies the entitlement rule: only active subscriptions keep
// their paid tier, everything else is persisted as free.
func PlanForStatus(plan SubscriptionPlan, status SubscriptionStatus) SubscriptionPlan {
	if status == SubscriptionStatusActive {
		return plan
	}
	return SubscriptionPlanFree
}

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
)

// BillingProvider identifies the upstream platform a record came from
type BillingProvider string

const (
	BillingProviderKiwify BillingProvider = "kiwify"
)

// SyncMode is the entry point a billing sync run was started from
type SyncMode string

const (
	SyncModeIncremental SyncMode = "incremental"
	SyncModeManual      SyncMode = "manual"
)

// TokenSource is the cache tier an access token was served from
type TokenSource string

const (
	TokenSourceMemory TokenSource = "memory"
	TokenSourceStore  TokenSource = "store"
	TokenSourceOAuth  TokenSource = "oauth"
)

// CurrencyBRL is the home currency used when a payload omits one
const CurrencyBRL = "BRL"
