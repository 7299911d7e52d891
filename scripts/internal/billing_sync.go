package internal

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nutriplan/nutriplan/internal/api/dto"
	"github.com/nutriplan/nutriplan/internal/auth"
	"github.com/nutriplan/nutriplan/internal/repository/gormrepo"
)

// MigrateDatabase applies pending schema migrations
func MigrateDatabase() error {
	deps, err := setup()
	if err != nil {
		return err
	}
	defer deps.closer()

	if err := deps.db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	deps.log.Infow("database migrated")
	return nil
}

// RunManualBillingSync backfills the accounts listed in USER_IDS, EMAILS and
// SUBSCRIPTION_IDS (comma separated). SINCE and UNTIL take RFC3339 timestamps.
func RunManualBillingSync() error {
	opts := dto.ManualSyncOptions{
		UserIDs:         splitEnv("USER_IDS"),
		Emails:          splitEnv("EMAILS"),
		SubscriptionIDs: splitEnv("SUBSCRIPTION_IDS"),
	}

	var err error
	if opts.Since, err = timeEnv("SINCE"); err != nil {
		return err
	}
	if opts.Until, err = timeEnv("UNTIL"); err != nil {
		return err
	}

	deps, err := setup()
	if err != nil {
		return err
	}
	defer deps.closer()

	ctx := context.Background()
	svc, closeSvc, err := deps.billingSyncService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	result, err := svc.RunManualSync(ctx, opts)
	if err != nil {
		return fmt.Errorf("manual billing sync failed: %w", err)
	}

	deps.log.Infow("manual billing sync finished",
		"subscriptions_fetched", result.SubscriptionsFetched,
		"subscriptions_persisted", result.SubscriptionsPersisted,
		"payments_inserted", result.PaymentsInserted,
		"users_missing", result.UsersMissing,
		"errors", result.Errors)
	return nil
}

// GenerateOperatorToken prints a signed token for calling the API. It reads
// USER_ID, EMAIL, ROLE (default admin) and TTL (default 1h).
func GenerateOperatorToken() error {
	deps, err := setup()
	if err != nil {
		return err
	}
	defer deps.closer()

	userID := os.Getenv("USER_ID")
	if userID == "" {
		return fmt.Errorf("USER_ID is required")
	}
	role := os.Getenv("ROLE")
	if role == "" {
		role = "admin"
	}
	ttl := time.Hour
	if raw := os.Getenv("TTL"); raw != "" {
		if ttl, err = time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid TTL: %w", err)
		}
	}

	token, err := auth.GenerateToken(deps.cfg.Auth.Secret, userID, os.Getenv("EMAIL"), role, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// LookupPayment prints the recorded payment for ORDER_ID, the Kiwify sale id.
// Support uses it to confirm a charge reached the ledger.
func LookupPayment() error {
	orderID := strings.TrimSpace(os.Getenv("ORDER_ID"))
	if orderID == "" {
		return fmt.Errorf("ORDER_ID is required")
	}

	deps, err := setup()
	if err != nil {
		return err
	}
	defer deps.closer()

	p, err := gormrepo.NewPaymentRepository(deps.db, deps.log).GetByProviderOrderID(context.Background(), orderID)
	if err != nil {
		return err
	}

	deps.log.Infow("payment found",
		"payment_id", p.ID,
		"user_id", p.UserID,
		"subscription_id", p.SubscriptionID,
		"amount_cents", p.AmountCents,
		"currency", p.Currency,
		"status", p.Status,
		"paid_at", p.PaidAt)
	return nil
}

func splitEnv(name string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func timeEnv(name string) (*time.Time, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &t, nil
}
