package activities

import (
	"context"

	"github.com/nutriplan/nutriplan/internal/api/dto"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/service"
	"github.com/nutriplan/nutriplan/internal/temporal/models"
	"go.temporal.io/sdk/temporal"
)

// Application error types the workflow retry policy treats as final
const (
	ErrorTypeValidation    = "validation"
	ErrorTypeSyncInProcess = "sync_in_progress"
)

// BillingSyncActivities wraps the billing sync service for Temporal.
// Registered with Temporal, methods are called by their method name.
type BillingSyncActivities struct {
	billingSyncService service.BillingSyncService
}

func NewBillingSyncActivities(billingSyncService service.BillingSyncService) *BillingSyncActivities {
	return &BillingSyncActivities{billingSyncService: billingSyncService}
}

// RunIncrementalSyncActivity runs one incremental billing sync
func (a *BillingSyncActivities) RunIncrementalSyncActivity(ctx context.Context, input models.BillingSyncWorkflowInput) (*dto.SyncResult, error) {
	result, err := a.billingSyncService.RunIncrementalSync(ctx, dto.IncrementalSyncOptions{
		LookbackHours: input.LookbackHours,
		Since:         input.Since,
	})
	switch {
	case err == nil:
		return result, nil
	case ierr.IsValidation(err):
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrorTypeValidation, err)
	case ierr.IsAlreadyExists(err):
		// another run holds the lock; the next scheduled run picks up from the watermark
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrorTypeSyncInProcess, err)
	default:
		return nil, err
	}
}
