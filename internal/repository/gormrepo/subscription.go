package gormrepo

import (
	"context"
	"time"

	"github.com/nutriplan/nutriplan/internal/domain/subscription"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/postgres"
	"github.com/nutriplan/nutriplan/internal/types"
)

type subscriptionRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

func NewSubscriptionRepository(client *postgres.Client, log *logger.Logger) subscription.Repository {
	return &subscriptionRepository{client: client, log: log}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub.ID == "" {
		sub.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION)
	}

	r.log.Debugw("creating subscription",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"provider_subscription_id", sub.ProviderSubscriptionID,
	)

	model := subscriptionModelFromDomain(sub)
	if err := r.client.DB(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ierr.WithError(err).
				WithHint("A subscription already exists for this user").
				WithReportableDetails(map[string]any{
					"user_id":                  sub.UserID,
					"provider_subscription_id": sub.ProviderSubscriptionID,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			WithReportableDetails(map[string]any{
				"user_id":                  sub.UserID,
				"provider_subscription_id": sub.ProviderSubscriptionID,
			}).
			Mark(ierr.ErrDatabase)
	}

	sub.CreatedAt = model.CreatedAt
	sub.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	r.log.Debugw("updating subscription",
		"subscription_id", sub.ID,
		"plan", sub.Plan,
		"status", sub.Status,
	)

	model := subscriptionModelFromDomain(sub)
	now := time.Now().UTC()

	// a map keeps nil period end and last event columns in the update
	result := r.client.DB(ctx).
		Model(&subscriptionModel{}).
		Where("id = ?", sub.ID).
		Updates(map[string]interface{}{
			"user_id":                  model.UserID,
			"plan":                     model.Plan,
			"status":                   model.Status,
			"current_period_start":     model.CurrentPeriodStart,
			"current_period_end":       model.CurrentPeriodEnd,
			"provider":                 model.Provider,
			"provider_order_id":        model.ProviderOrderID,
			"provider_subscription_id": model.ProviderSubscriptionID,
			"provider_plan_id":         model.ProviderPlanID,
			"last_event_at":            model.LastEventAt,
			"updated_at":               now,
		})
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ierr.WithError(result.Error).
				WithHint("Another subscription already belongs to this user").
				WithReportableDetails(map[string]any{"subscription_id": sub.ID, "user_id": sub.UserID}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(result.Error).
			WithHintf("Failed to update subscription %s", sub.ID).
			Mark(ierr.ErrDatabase)
	}
	if result.RowsAffected == 0 {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription with ID %s was not found", sub.ID).
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrNotFound)
	}

	sub.UpdatedAt = now
	return nil
}

func (r *subscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	var model subscriptionModel
	err := r.client.DB(ctx).
		Where("provider_subscription_id = ?", providerSubscriptionID).
		Order("updated_at DESC").
		First(&model).Error
	if err != nil {
		if isNotFoundError(err) {
			return nil, ierr.WithError(err).
				WithHintf("Subscription %s was not found", providerSubscriptionID).
				WithReportableDetails(map[string]any{"provider_subscription_id": providerSubscriptionID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return model.toDomain(), nil
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	var model subscriptionModel
	err := r.client.DB(ctx).
		Where("user_id = ?", userID).
		First(&model).Error
	if err != nil {
		if isNotFoundError(err) {
			return nil, ierr.WithError(err).
				WithHint("User has no subscription").
				WithReportableDetails(map[string]any{"user_id": userID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return model.toDomain(), nil
}
