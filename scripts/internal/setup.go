package internal

import (
	"context"
	"fmt"

	"github.com/nutriplan/nutriplan/internal/cache"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	"github.com/nutriplan/nutriplan/internal/integration/kiwify"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/postgres"
	"github.com/nutriplan/nutriplan/internal/repository/gormrepo"
	supabaserepo "github.com/nutriplan/nutriplan/internal/repository/supabase"
	"github.com/nutriplan/nutriplan/internal/service"
)

// scriptDeps is what every operator script needs. close releases connections.
type scriptDeps struct {
	cfg    *config.Configuration
	log    *logger.Logger
	db     *postgres.Client
	closer func()
}

func setup() (*scriptDeps, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := postgres.NewClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &scriptDeps{
		cfg:    cfg,
		log:    log,
		db:     db,
		closer: func() { _ = db.Close() },
	}, nil
}

func (d *scriptDeps) billingSyncService(ctx context.Context) (service.BillingSyncService, func(), error) {
	store, closeStore, err := cache.NewTokenStore(ctx, d.cfg, d.log)
	if err != nil {
		return nil, nil, err
	}

	clientCfg := kiwify.Config{
		BaseURL:           d.cfg.Kiwify.BaseURL,
		AccountID:         d.cfg.Kiwify.AccountID,
		RequestsPerMinute: d.cfg.Kiwify.RequestsPerMinute,
		PageSize:          d.cfg.Kiwify.PageSize,
		HTTPTimeout:       d.cfg.Kiwify.HTTPTimeout,
		TransportRetries:  d.cfg.Kiwify.TransportRetries,
	}
	httpClient := kiwify.NewHTTPClient(clientCfg, d.log)
	credentials, err := kiwify.NewCredentialManager(kiwify.CredentialsConfig{
		BaseURL:      d.cfg.Kiwify.BaseURL,
		ClientID:     d.cfg.Kiwify.ClientID,
		ClientSecret: d.cfg.Kiwify.ClientSecret,
		AccountID:    d.cfg.Kiwify.AccountID,
		SafetyMargin: d.cfg.Kiwify.TokenSafetyMargin,
		KeyPrefix:    d.cfg.TokenStore.KeyPrefix,
	}, cache.NewInMemoryCache(), store, httpClient, d.log)
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}

	var users user.Repository
	if d.cfg.Identity.Source == "supabase" {
		users, err = supabaserepo.NewUserRepository(d.cfg, d.log)
		if err != nil {
			_ = closeStore()
			return nil, nil, err
		}
	} else {
		users = gormrepo.NewUserRepository(d.db, d.log, d.cfg.Identity.Table)
	}

	params := service.NewServiceParams(
		d.log,
		d.cfg,
		gormrepo.NewSubscriptionRepository(d.db, d.log),
		gormrepo.NewPaymentRepository(d.db, d.log),
		gormrepo.NewSyncStateRepository(d.db, d.log),
		users,
		postgres.NewLocker(d.db, d.log),
		kiwify.NewClient(clientCfg, credentials, httpClient, d.log),
	)
	return service.NewBillingSyncService(params), func() { _ = closeStore() }, nil
}
