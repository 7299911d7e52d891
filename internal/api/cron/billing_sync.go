package cron

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nutriplan/nutriplan/internal/api/dto"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/service"
)

// BillingSyncCronHandler handles scheduler triggered billing syncs
type BillingSyncCronHandler struct {
	billingSyncService service.BillingSyncService
	logger             *logger.Logger
}

func NewBillingSyncCronHandler(
	billingSyncService service.BillingSyncService,
	logger *logger.Logger,
) *BillingSyncCronHandler {
	return &BillingSyncCronHandler{
		billingSyncService: billingSyncService,
		logger:             logger,
	}
}

// RunIncrementalSync runs one watermark driven sync. The body is optional.
func (h *BillingSyncCronHandler) RunIncrementalSync(c *gin.Context) {
	h.logger.Infow("starting billing sync cron job", "time", time.Now().UTC().Format(time.RFC3339))

	var req dto.IncrementalSyncOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid sync options").
				Mark(ierr.ErrValidation))
			return
		}
	}

	result, err := h.billingSyncService.RunIncrementalSync(c.Request.Context(), req)
	if err != nil {
		h.logger.Errorw("billing sync cron job failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed billing sync cron job",
		"subscriptions_persisted", result.SubscriptionsPersisted,
		"payments_inserted", result.PaymentsInserted,
		"errors", result.Errors)
	c.JSON(http.StatusOK, result)
}
