package gormrepo

import (
	"time"

	"github.com/nutriplan/nutriplan/internal/domain/payment"
	"github.com/nutriplan/nutriplan/internal/domain/subscription"
	"github.com/nutriplan/nutriplan/internal/domain/syncstate"
	"github.com/nutriplan/nutriplan/internal/types"
	"gorm.io/gorm"
)

type subscriptionModel struct {
	ID                     string     `gorm:"type:varchar(50);primaryKey"`
	UserID                 string     `gorm:"type:varchar(50);not null;uniqueIndex:ux_subscriptions_user_id"`
	Plan                   string     `gorm:"type:varchar(32);not null;default:'free'"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'incomplete'"`
	CurrentPeriodStart     time.Time  `gorm:"not null"`
	CurrentPeriodEnd       *time.Time `gorm:"default:null"`
	Provider               string     `gorm:"type:varchar(20);not null"`
	ProviderOrderID        string     `gorm:"type:varchar(191)"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;index:idx_subscriptions_provider_subscription_id"`
	ProviderPlanID         string     `gorm:"type:varchar(191)"`
	LastEventAt            *time.Time `gorm:"default:null"`
	CreatedAt              time.Time  `gorm:"autoCreateTime"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime"`
}

func (subscriptionModel) TableName() string {
	return string(types.TableNameSubscriptions)
}

func subscriptionModelFromDomain(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                     s.ID,
		UserID:                 s.UserID,
		Plan:                   string(s.Plan),
		Status:                 string(s.Status),
		CurrentPeriodStart:     s.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:       utcPtr(s.CurrentPeriodEnd),
		Provider:               string(s.Provider),
		ProviderOrderID:        s.ProviderOrderID,
		ProviderSubscriptionID: s.ProviderSubscriptionID,
		ProviderPlanID:         s.ProviderPlanID,
		LastEventAt:            utcPtr(s.LastEventAt),
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

func (m *subscriptionModel) toDomain() *subscription.Subscription {
	return &subscription.Subscription{
		ID:                     m.ID,
		UserID:                 m.UserID,
		Plan:                   types.SubscriptionPlan(m.Plan),
		Status:                 types.SubscriptionStatus(m.Status),
		CurrentPeriodStart:     m.CurrentPeriodStart,
		CurrentPeriodEnd:       m.CurrentPeriodEnd,
		Provider:               types.BillingProvider(m.Provider),
		ProviderOrderID:        m.ProviderOrderID,
		ProviderSubscriptionID: m.ProviderSubscriptionID,
		ProviderPlanID:         m.ProviderPlanID,
		LastEventAt:            m.LastEventAt,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

type paymentModel struct {
	ID                    string    `gorm:"type:varchar(50);primaryKey"`
	UserID                string    `gorm:"type:varchar(50);not null;index:idx_payments_user_id"`
	SubscriptionID        string    `gorm:"type:varchar(50)"`
	Plan                  string    `gorm:"type:varchar(32);not null"`
	AmountCents           int64     `gorm:"not null;default:0"`
	Currency              string    `gorm:"type:varchar(3);not null;default:'BRL'"`
	Provider              string    `gorm:"type:varchar(20);not null"`
	ProviderOrderID       string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_payments_provider_order_id"`
	ProviderTransactionID string    `gorm:"type:varchar(191)"`
	Status                string    `gorm:"type:varchar(32);not null"`
	PaidAt                time.Time `gorm:"not null"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
}

func (paymentModel) TableName() string {
	return string(types.TableNamePayments)
}

func paymentModelFromDomain(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:                    p.ID,
		UserID:                p.UserID,
		SubscriptionID:        p.SubscriptionID,
		Plan:                  string(p.Plan),
		AmountCents:           p.AmountCents,
		Currency:              p.Currency,
		Provider:              string(p.Provider),
		ProviderOrderID:       p.ProviderOrderID,
		ProviderTransactionID: p.ProviderTransactionID,
		Status:                string(p.Status),
		PaidAt:                p.PaidAt.UTC(),
		CreatedAt:             p.CreatedAt,
	}
}

func (m *paymentModel) toDomain() *payment.Payment {
	return &payment.Payment{
		ID:                    m.ID,
		UserID:                m.UserID,
		SubscriptionID:        m.SubscriptionID,
		Plan:                  types.SubscriptionPlan(m.Plan),
		AmountCents:           m.AmountCents,
		Currency:              m.Currency,
		Provider:              types.BillingProvider(m.Provider),
		ProviderOrderID:       m.ProviderOrderID,
		ProviderTransactionID: m.ProviderTransactionID,
		Status:                types.PaymentStatus(m.Status),
		PaidAt:                m.PaidAt,
		CreatedAt:             m.CreatedAt,
	}
}

type syncStateModel struct {
	ID           string     `gorm:"type:varchar(50);primaryKey"`
	LastSyncedAt *time.Time `gorm:"default:null"`
	LastRunAt    *time.Time `gorm:"default:null"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

func (syncStateModel) TableName() string {
	return string(types.TableNameSyncState)
}

func (m *syncStateModel) toDomain() *syncstate.SyncState {
	return &syncstate.SyncState{
		ID:           m.ID,
		LastSyncedAt: m.LastSyncedAt,
		LastRunAt:    m.LastRunAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// profileModel is owned by the application's auth schema; it is only
// auto-migrated for local sqlite databases.
type profileModel struct {
	ID    string `gorm:"type:varchar(50);primaryKey"`
	Email string `gorm:"type:varchar(320);index"`
}

func (profileModel) TableName() string {
	return string(types.TableNameProfiles)
}

// AutoMigrate creates the tables from the gorm models. Postgres deployments use
// the embedded SQL migrations instead; this serves sqlite databases.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&subscriptionModel{}, &paymentModel{}, &syncStateModel{}, &profileModel{})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
