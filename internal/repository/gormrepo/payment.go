package gormrepo

import (
	"context"

	"github.com/nutriplan/nutriplan/internal/domain/payment"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/postgres"
	"github.com/nutriplan/nutriplan/internal/types"
)

type paymentRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

func NewPaymentRepository(client *postgres.Client, log *logger.Logger) payment.Repository {
	return &paymentRepository{client: client, log: log}
}

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if p.ID == "" {
		p.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT)
	}

	model := paymentModelFromDomain(p)
	if err := r.client.DB(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ierr.WithError(err).
				WithHint("Payment for this order was already recorded").
				WithReportableDetails(map[string]any{"provider_order_id": p.ProviderOrderID}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to record payment").
			WithReportableDetails(map[string]any{
				"provider_order_id": p.ProviderOrderID,
				"user_id":           p.UserID,
			}).
			Mark(ierr.ErrDatabase)
	}

	r.log.Debugw("recorded payment",
		"payment_id", p.ID,
		"provider_order_id", p.ProviderOrderID,
		"amount_cents", p.AmountCents,
	)

	p.CreatedAt = model.CreatedAt
	return nil
}

func (r *paymentRepository) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*payment.Payment, error) {
	var model paymentModel
	err := r.client.DB(ctx).Where("provider_order_id = ?", providerOrderID).First(&model).Error
	if err != nil {
		if isNotFoundError(err) {
			return nil, ierr.WithError(err).
				WithHintf("Payment for order %s was not found", providerOrderID).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return model.toDomain(), nil
}
