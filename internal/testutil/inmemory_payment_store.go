package testutil

import (
	"context"
	"time"

	"github.com/nutriplan/nutriplan/internal/domain/payment"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/types"
)

// InMemoryPaymentStore implements payment.Repository, keyed by provider order id
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").Mark(ierr.ErrValidation)
	}
	if p.ID == "" {
		p.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT)
	}
	p.CreatedAt = time.Now().UTC()

	copied := *p
	return s.InMemoryStore.Create(ctx, p.ProviderOrderID, &copied)
}

func (s *InMemoryPaymentStore) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, providerOrderID)
	if err != nil {
		return nil, err
	}
	copied := *p
	return &copied, nil
}
