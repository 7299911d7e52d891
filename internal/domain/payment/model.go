package payment

import (
	"time"

	"github.com/nutriplan/nutriplan/internal/types"
)

// Payment is an append-only record of a settled charge. ProviderOrderID is unique.
type Payment struct {
	ID                    string
	UserID                string
	SubscriptionID        string
	Plan                  types.SubscriptionPlan
	AmountCents           int64
	Currency              string
	Provider              types.BillingProvider
	ProviderOrderID       string
	ProviderTransactionID string
	Status                types.PaymentStatus
	PaidAt                time.Time
	CreatedAt             time.Time
}
