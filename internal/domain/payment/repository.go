package payment

import (
	"context"
)

type Repository interface {
	// Create inserts a payment. A second payment for the same provider order id
	// fails with ErrAlreadyExists.
	Create(ctx context.Context, p *Payment) error

	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*Payment, error)
}
