package service

import (
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/domain/payment"
	"github.com/nutriplan/nutriplan/internal/domain/subscription"
	"github.com/nutriplan/nutriplan/internal/domain/syncstate"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	"github.com/nutriplan/nutriplan/internal/integration/kiwify"
	"github.com/nutriplan/nutriplan/internal/logger"
)

// ServiceParams holds the dependencies shared by the services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	// Repositories
	SubscriptionRepo subscription.Repository
	PaymentRepo      payment.Repository
	SyncStateRepo    syncstate.Repository
	UserRepo         user.Repository
	SyncLocker       syncstate.Locker

	// Integrations
	KiwifyClient kiwify.KiwifyClient
}

func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	subscriptionRepo subscription.Repository,
	paymentRepo payment.Repository,
	syncStateRepo syncstate.Repository,
	userRepo user.Repository,
	syncLocker syncstate.Locker,
	kiwifyClient kiwify.KiwifyClient,
) ServiceParams {
	return ServiceParams{
		Logger:           logger,
		Config:           config,
		SubscriptionRepo: subscriptionRepo,
		PaymentRepo:      paymentRepo,
		SyncStateRepo:    syncStateRepo,
		UserRepo:         userRepo,
		SyncLocker:       syncLocker,
		KiwifyClient:     kiwifyClient,
	}
}
