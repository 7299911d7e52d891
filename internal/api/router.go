package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nutriplan/nutriplan/internal/api/cron"
	v1 "github.com/nutriplan/nutriplan/internal/api/v1"
	"github.com/nutriplan/nutriplan/internal/auth"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/rest/middleware"
)

type Handlers struct {
	BillingSync     *v1.BillingSyncHandler
	CronBillingSync *cron.BillingSyncCronHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, authProvider auth.Provider) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.LoggingMiddleware(logger),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	cronGroup := router.Group("/cron", middleware.CronSecretMiddleware(cfg))
	{
		cronGroup.POST("/billing/sync", handlers.CronBillingSync.RunIncrementalSync)
	}

	private := router.Group("/v1",
		middleware.AuthenticateMiddleware(authProvider, logger),
		middleware.SentryUserContextMiddleware,
	)

	billing := private.Group("/billing")
	{
		billing.POST("/sync", handlers.BillingSync.SyncBilling)
		billing.POST("/subscription/cancel", handlers.BillingSync.CancelSubscription)
		billing.GET("/token", middleware.RequireAdmin, handlers.BillingSync.GetTokenMetadata)
	}

	return router
}
