package workflows

import (
	"time"

	"github.com/nutriplan/nutriplan/internal/api/dto"
	activities "github.com/nutriplan/nutriplan/internal/temporal/activities/billing"
	"github.com/nutriplan/nutriplan/internal/temporal/models"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	// Workflow name - must match the function name
	WorkflowBillingSync = "BillingSyncWorkflow"
	// Activity name - must match the registered method name
	ActivityRunIncrementalSync = "RunIncrementalSyncActivity"
)

// BillingSyncWorkflow runs one incremental billing sync with retries
func BillingSyncWorkflow(ctx workflow.Context, input models.BillingSyncWorkflowInput) (*dto.SyncResult, error) {
	if err := input.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), activities.ErrorTypeValidation, err)
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("Starting billing sync workflow", "lookback_hours", input.LookbackHours)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute * 30,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second * 30,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute * 5,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				activities.ErrorTypeValidation,
				activities.ErrorTypeSyncInProcess,
			},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result dto.SyncResult
	if err := workflow.ExecuteActivity(ctx, ActivityRunIncrementalSync, input).Get(ctx, &result); err != nil {
		logger.Error("Billing sync activity failed", "error", err)
		return nil, err
	}

	logger.Info("Billing sync workflow completed",
		"subscriptions_persisted", result.SubscriptionsPersisted,
		"payments_inserted", result.PaymentsInserted,
		"errors", result.Errors)
	return &result, nil
}
