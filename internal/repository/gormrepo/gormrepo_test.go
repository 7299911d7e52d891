package gormrepo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/nutriplan/nutriplan/internal/domain/payment"
	"github.com/nutriplan/nutriplan/internal/domain/subscription"
	"github.com/nutriplan/nutriplan/internal/domain/syncstate"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/postgres"
	"github.com/nutriplan/nutriplan/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type RepositorySuite struct {
	suite.Suite
	ctx    context.Context
	db     *gorm.DB
	client *postgres.Client
	log    *logger.Logger
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.log = logger.NewNopLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(s.T().Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	s.Require().NoError(err)
	s.Require().NoError(AutoMigrate(db))
	s.db = db

	client, err := postgres.NewFromGorm(db, s.log)
	s.Require().NoError(err)
	s.client = client
}

func (s *RepositorySuite) TearDownTest() {
	s.NoError(s.client.Close())
}

func (s *RepositorySuite) newSubscription(userID, providerSubID string) *subscription.Subscription {
	return &subscription.Subscription{
		UserID:                 userID,
		Plan:                   types.SubscriptionPlanPremiumMonthly,
		Status:                 types.SubscriptionStatusActive,
		CurrentPeriodStart:     time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:       lo.ToPtr(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)),
		Provider:               types.BillingProviderKiwify,
		ProviderOrderID:        "ord_" + providerSubID,
		ProviderSubscriptionID: providerSubID,
		ProviderPlanID:         "plan_monthly",
	}
}

func (s *RepositorySuite) TestSubscriptionCreateAndLookup() {
	repo := NewSubscriptionRepository(s.client, s.log)

	sub := s.newSubscription("user_1", "ks_1")
	s.Require().NoError(repo.Create(s.ctx, sub))
	s.True(strings.HasPrefix(sub.ID, types.UUID_PREFIX_SUBSCRIPTION+"_"))

	byProvider, err := repo.GetByProviderSubscriptionID(s.ctx, "ks_1")
	s.Require().NoError(err)
	s.Equal(sub.ID, byProvider.ID)
	s.Equal(types.SubscriptionPlanPremiumMonthly, byProvider.Plan)
	s.Require().NotNil(byProvider.CurrentPeriodEnd)
	s.True(byProvider.CurrentPeriodEnd.Equal(*sub.CurrentPeriodEnd))

	byUser, err := repo.GetByUserID(s.ctx, "user_1")
	s.Require().NoError(err)
	s.Equal(sub.ID, byUser.ID)

	_, err = repo.GetByProviderSubscriptionID(s.ctx, "missing")
	s.True(ierr.IsNotFound(err))

	_, err = repo.GetByUserID(s.ctx, "nobody")
	s.True(ierr.IsNotFound(err))
}

func (s *RepositorySuite) TestSubscriptionOneRowPerUser() {
	repo := NewSubscriptionRepository(s.client, s.log)

	s.Require().NoError(repo.Create(s.ctx, s.newSubscription("user_1", "ks_1")))
	err := repo.Create(s.ctx, s.newSubscription("user_1", "ks_2"))
	s.True(ierr.IsAlreadyExists(err))
}

func (s *RepositorySuite) TestSubscriptionUpdateClearsNullableColumns() {
	repo := NewSubscriptionRepository(s.client, s.log)

	sub := s.newSubscription("user_1", "ks_1")
	s.Require().NoError(repo.Create(s.ctx, sub))

	sub.Plan = types.SubscriptionPlanFree
	sub.Status = types.SubscriptionStatusCancelled
	sub.CurrentPeriodEnd = nil
	s.Require().NoError(repo.Update(s.ctx, sub))

	got, err := repo.GetByUserID(s.ctx, "user_1")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionPlanFree, got.Plan)
	s.Equal(types.SubscriptionStatusCancelled, got.Status)
	s.Nil(got.CurrentPeriodEnd)
}

func (s *RepositorySuite) TestSubscriptionUpdateMissingRow() {
	repo := NewSubscriptionRepository(s.client, s.log)

	sub := s.newSubscription("user_1", "ks_1")
	sub.ID = "sub_missing"
	s.True(ierr.IsNotFound(repo.Update(s.ctx, sub)))
}

func (s *RepositorySuite) TestPaymentDuplicateOrder() {
	repo := NewPaymentRepository(s.client, s.log)

	newPayment := func() *payment.Payment {
		return &payment.Payment{
			UserID:          "user_1",
			SubscriptionID:  "sub_1",
			Plan:            types.SubscriptionPlanPremiumMonthly,
			AmountCents:     2990,
			Currency:        types.CurrencyBRL,
			Provider:        types.BillingProviderKiwify,
			ProviderOrderID: "ord_1",
			Status:          types.PaymentStatusSucceeded,
			PaidAt:          time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		}
	}

	first := newPayment()
	s.Require().NoError(repo.Create(s.ctx, first))
	s.True(strings.HasPrefix(first.ID, types.UUID_PREFIX_PAYMENT+"_"))

	err := repo.Create(s.ctx, newPayment())
	s.True(ierr.IsAlreadyExists(err))

	got, err := repo.GetByProviderOrderID(s.ctx, "ord_1")
	s.Require().NoError(err)
	s.Equal(int64(2990), got.AmountCents)

	_, err = repo.GetByProviderOrderID(s.ctx, "ord_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *RepositorySuite) TestSyncStateUpsert() {
	repo := NewSyncStateRepository(s.client, s.log)

	_, err := repo.Get(s.ctx, syncstate.DefaultID)
	s.True(ierr.IsNotFound(err))

	first := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(repo.Save(s.ctx, &syncstate.SyncState{LastSyncedAt: &first, LastRunAt: &first}))

	second := first.Add(time.Hour)
	s.Require().NoError(repo.Save(s.ctx, &syncstate.SyncState{ID: syncstate.DefaultID, LastSyncedAt: &second, LastRunAt: &second}))

	got, err := repo.Get(s.ctx, syncstate.DefaultID)
	s.Require().NoError(err)
	s.Require().NotNil(got.LastSyncedAt)
	s.True(got.LastSyncedAt.Equal(second))

	var count int64
	s.Require().NoError(s.db.Model(&syncStateModel{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *RepositorySuite) TestUserFindIDByEmail() {
	s.Require().NoError(s.db.Create(&profileModel{ID: "user_1", Email: "Maria@Example.com"}).Error)

	repo := NewUserRepository(s.client, s.log, "")

	id, err := repo.FindIDByEmail(s.ctx, " maria@example.com ")
	s.Require().NoError(err)
	s.Equal("user_1", id)

	_, err = repo.FindIDByEmail(s.ctx, "other@example.com")
	s.True(ierr.IsNotFound(err))

	_, err = repo.FindIDByEmail(s.ctx, "")
	s.True(ierr.IsValidation(err))
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.False(t, isDuplicateKeyError(nil))
	assert.True(t, isDuplicateKeyError(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKeyError(fmt.Errorf("UNIQUE constraint failed: payments.provider_order_id")))
	assert.False(t, isDuplicateKeyError(fmt.Errorf("connection refused")))
	require.True(t, isNotFoundError(fmt.Errorf("wrap: %w", gorm.ErrRecordNotFound)))
}
