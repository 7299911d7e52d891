package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nutriplan/nutriplan/internal/api"
	"github.com/nutriplan/nutriplan/internal/api/cron"
	v1 "github.com/nutriplan/nutriplan/internal/api/v1"
	"github.com/nutriplan/nutriplan/internal/auth"
	"github.com/nutriplan/nutriplan/internal/cache"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	"github.com/nutriplan/nutriplan/internal/integration/kiwify"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/postgres"
	"github.com/nutriplan/nutriplan/internal/profiling"
	"github.com/nutriplan/nutriplan/internal/repository/gormrepo"
	supabaserepo "github.com/nutriplan/nutriplan/internal/repository/supabase"
	"github.com/nutriplan/nutriplan/internal/sentry"
	"github.com/nutriplan/nutriplan/internal/service"
	activities "github.com/nutriplan/nutriplan/internal/temporal/activities/billing"
	temporalservice "github.com/nutriplan/nutriplan/internal/temporal/service"
	"github.com/nutriplan/nutriplan/internal/types"
	"go.uber.org/fx"
)

func main() {
	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// DB
			providePostgresClient,

			// Token store and upstream client
			provideTokenStore,
			provideKiwifyClient,

			// Repositories
			gormrepo.NewSubscriptionRepository,
			gormrepo.NewPaymentRepository,
			gormrepo.NewSyncStateRepository,
			provideUserRepository,
			postgres.NewLocker,

			// Services
			service.NewServiceParams,
			service.NewBillingSyncService,

			// Auth
			auth.NewSupabaseAuth,

			// Handlers
			v1.NewBillingSyncHandler,
			cron.NewBillingSyncCronHandler,
			provideHandlers,
			provideRouter,

			// Temporal
			activities.NewBillingSyncActivities,
			temporalservice.NewTemporalService,
		),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func providePostgresClient(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (*postgres.Client, error) {
	client, err := postgres.NewClient(cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Postgres.AutoMigrate {
		if err := client.Migrate(); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing postgres connection")
			return client.Close()
		},
	})
	return client, nil
}

func provideTokenStore(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (cache.Cache, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, closeFn, err := cache.NewTokenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closeFn()
		},
	})
	return store, nil
}

func provideKiwifyClient(cfg *config.Configuration, store cache.Cache, log *logger.Logger) (kiwify.KiwifyClient, error) {
	clientCfg := kiwify.Config{
		BaseURL:           cfg.Kiwify.BaseURL,
		AccountID:         cfg.Kiwify.AccountID,
		RequestsPerMinute: cfg.Kiwify.RequestsPerMinute,
		PageSize:          cfg.Kiwify.PageSize,
		HTTPTimeout:       cfg.Kiwify.HTTPTimeout,
		TransportRetries:  cfg.Kiwify.TransportRetries,
	}
	httpClient := kiwify.NewHTTPClient(clientCfg, log)

	credentials, err := kiwify.NewCredentialManager(kiwify.CredentialsConfig{
		BaseURL:      cfg.Kiwify.BaseURL,
		ClientID:     cfg.Kiwify.ClientID,
		ClientSecret: cfg.Kiwify.ClientSecret,
		AccountID:    cfg.Kiwify.AccountID,
		SafetyMargin: cfg.Kiwify.TokenSafetyMargin,
		KeyPrefix:    cfg.TokenStore.KeyPrefix,
	}, cache.NewInMemoryCache(), store, httpClient, log)
	if err != nil {
		return nil, err
	}

	return kiwify.NewClient(clientCfg, credentials, httpClient, log), nil
}

func provideUserRepository(cfg *config.Configuration, client *postgres.Client, log *logger.Logger) (user.Repository, error) {
	if cfg.Identity.Source == "supabase" {
		return supabaserepo.NewUserRepository(cfg, log)
	}
	return gormrepo.NewUserRepository(client, log, cfg.Identity.Table), nil
}

func provideHandlers(billingSync *v1.BillingSyncHandler, cronBillingSync *cron.BillingSyncCronHandler) api.Handlers {
	return api.Handlers{
		BillingSync:     billingSync,
		CronBillingSync: cronBillingSync,
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, log *logger.Logger, authProvider auth.Provider) *gin.Engine {
	if cfg.Deployment.Mode != string(types.ModeLocal) {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = log.GetGinLogger()
	return api.NewRouter(handlers, cfg, log, authProvider)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	router *gin.Engine,
	temporalService *temporalservice.TemporalService,
	sentryService *sentry.Service,
	log *logger.Logger,
) {
	mode := types.RunMode(cfg.Deployment.Mode)

	var stopProfiler func() error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			stop, err := profiling.Start(cfg, log)
			if err != nil {
				return err
			}
			stopProfiler = stop
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if stopProfiler == nil {
				return nil
			}
			return stopProfiler()
		},
	})

	if mode.RunsWorker() {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return temporalService.Start(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return temporalService.Stop(ctx)
			},
		})
	}

	if mode.RunsAPI() {
		srv := &http.Server{
			Addr:              cfg.Server.Address,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				log.Infow("starting API server", "address", cfg.Server.Address, "mode", mode)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Fatalf("API server failed: %v", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down API server")
				return srv.Shutdown(ctx)
			},
		})
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sentryService.Flush(2 * time.Second)
			return nil
		},
	})
}
