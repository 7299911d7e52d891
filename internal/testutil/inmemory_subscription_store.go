package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/nutriplan/nutriplan/internal/domain/subscription"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]

	// WriteErr, when set, is returned by Create and Update
	WriteErr error
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func copySubscription(s *subscription.Subscription) *subscription.Subscription {
	if s == nil {
		return nil
	}
	copied := *s
	if s.CurrentPeriodEnd != nil {
		copied.CurrentPeriodEnd = lo.ToPtr(*s.CurrentPeriodEnd)
	}
	if s.LastEventAt != nil {
		copied.LastEventAt = lo.ToPtr(*s.LastEventAt)
	}
	return &copied
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").Mark(ierr.ErrValidation)
	}
	if s.WriteErr != nil {
		return s.WriteErr
	}

	existing := s.List(ctx, func(item *subscription.Subscription) bool { return item.UserID == sub.UserID })
	if len(existing) > 0 {
		return ierr.NewError("subscription already exists").
			WithHint("A subscription already exists for this user").
			Mark(ierr.ErrAlreadyExists)
	}

	if sub.ID == "" {
		sub.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION)
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").Mark(ierr.ErrValidation)
	}
	if s.WriteErr != nil {
		return s.WriteErr
	}
	sub.UpdatedAt = time.Now().UTC()
	return s.InMemoryStore.Update(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	return s.first(ctx, func(item *subscription.Subscription) bool {
		return item.ProviderSubscriptionID == providerSubscriptionID
	})
}

func (s *InMemorySubscriptionStore) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return s.first(ctx, func(item *subscription.Subscription) bool {
		return item.UserID == userID
	})
}

// All returns copies of every stored subscription ordered by user id
func (s *InMemorySubscriptionStore) All(ctx context.Context) []*subscription.Subscription {
	items := lo.Map(s.List(ctx, nil), func(item *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(item)
	})
	sort.Slice(items, func(i, j int) bool { return items[i].UserID < items[j].UserID })
	return items
}

func (s *InMemorySubscriptionStore) first(ctx context.Context, filter func(*subscription.Subscription) bool) (*subscription.Subscription, error) {
	items := s.List(ctx, filter)
	if len(items) == 0 {
		return nil, ierr.NewError("subscription not found").Mark(ierr.ErrNotFound)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return copySubscription(items[0]), nil
}
