package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nutriplan/nutriplan/internal/api/dto"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/service"
	"github.com/nutriplan/nutriplan/internal/types"
)

type BillingSyncHandler struct {
	billingSyncService service.BillingSyncService
	log                *logger.Logger
}

func NewBillingSyncHandler(billingSyncService service.BillingSyncService, log *logger.Logger) *BillingSyncHandler {
	return &BillingSyncHandler{
		billingSyncService: billingSyncService,
		log:                log,
	}
}

// SyncBilling re-syncs the requested targets. Callers without an admin role
// can only re-sync themselves, whatever targets they send.
func (h *BillingSyncHandler) SyncBilling(c *gin.Context) {
	var req dto.ManualSyncOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Invalid sync request").
				Mark(ierr.ErrValidation))
			return
		}
	}

	ctx := c.Request.Context()
	if !types.IsAdmin(ctx) {
		req = dto.ManualSyncOptions{
			UserIDs: []string{types.GetUserID(ctx)},
			Since:   req.Since,
			Until:   req.Until,
		}
		if email := types.GetUserEmail(ctx); email != "" {
			req.Emails = []string{email}
		}
	}

	result, err := h.billingSyncService.RunManualSync(ctx, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CancelSubscription cancels the caller's subscription. Admins may target
// another user with ?user_id=.
func (h *BillingSyncHandler) CancelSubscription(c *gin.Context) {
	ctx := c.Request.Context()
	userID := types.GetUserID(ctx)

	if target := c.Query("user_id"); target != "" && target != userID {
		if !types.IsAdmin(ctx) {
			c.Error(ierr.NewError("cannot cancel another user's subscription").
				WithHint("Only administrators can cancel subscriptions for other users").
				Mark(ierr.ErrPermissionDenied))
			return
		}
		userID = target
	}

	result, err := h.billingSyncService.CancelSubscription(ctx, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *BillingSyncHandler) GetTokenMetadata(c *gin.Context) {
	forceRefresh := false
	if raw := c.Query("force_refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.Error(ierr.WithError(err).
				WithHint("force_refresh must be a boolean").
				Mark(ierr.ErrValidation))
			return
		}
		forceRefresh = parsed
	}

	meta, err := h.billingSyncService.TokenMetadata(c.Request.Context(), forceRefresh)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, meta)
}
