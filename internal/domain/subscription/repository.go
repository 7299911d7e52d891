package subscription

import (
	"context"
)

// Repository defines the interface for subscription ledger persistence
type Repository interface {
	// Create inserts a new subscription row
	Create(ctx context.Context, sub *Subscription) error

	// Update overwrites the mutable columns of an existing row
	Update(ctx context.Context, sub *Subscription) error

	// GetByProviderSubscriptionID returns ErrNotFound when no row references the provider id
	GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)

	// GetByUserID returns the user's row or ErrNotFound
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
}
