package service

import (
	"context"
	"errors"

	"github.com/nutriplan/nutriplan/internal/config"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/sentry"
	activities "github.com/nutriplan/nutriplan/internal/temporal/activities/billing"
	temporalInterceptor "github.com/nutriplan/nutriplan/internal/temporal/interceptor"
	"github.com/nutriplan/nutriplan/internal/temporal/models"
	"github.com/nutriplan/nutriplan/internal/temporal/workflows"
	"github.com/nutriplan/nutriplan/internal/types"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// TemporalService owns the Temporal client, the billing worker and the sync schedule
type TemporalService struct {
	cfg        *config.Configuration
	logger     *logger.Logger
	sentry     *sentry.Service
	activities *activities.BillingSyncActivities

	client client.Client
	worker worker.Worker
}

func NewTemporalService(
	cfg *config.Configuration,
	logger *logger.Logger,
	sentryService *sentry.Service,
	billingActivities *activities.BillingSyncActivities,
) *TemporalService {
	return &TemporalService{
		cfg:        cfg,
		logger:     logger,
		sentry:     sentryService,
		activities: billingActivities,
	}
}

func (s *TemporalService) taskQueue() string {
	if s.cfg.Temporal.TaskQueue != "" {
		return s.cfg.Temporal.TaskQueue
	}
	return types.TemporalBillingSyncWorkflow.TaskQueue().String()
}

// Start dials Temporal, starts the billing worker and reconciles the sync
// schedule. It does nothing when temporal.enabled is false.
func (s *TemporalService) Start(ctx context.Context) error {
	if !s.cfg.Temporal.Enabled {
		s.logger.Infow("temporal disabled, scheduled billing sync relies on the cron endpoint")
		return nil
	}

	c, err := client.Dial(client.Options{
		HostPort:  s.cfg.Temporal.Address,
		Namespace: s.cfg.Temporal.Namespace,
		Logger:    s.logger.GetTemporalLogger(),
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to connect to Temporal").
			WithReportableDetails(map[string]interface{}{"address": s.cfg.Temporal.Address}).
			Mark(ierr.ErrSystem)
	}
	s.client = c

	w := worker.New(c, s.taskQueue(), worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{temporalInterceptor.NewSentryInterceptor(s.sentry)},
	})
	w.RegisterWorkflowWithOptions(workflows.BillingSyncWorkflow, workflow.RegisterOptions{
		Name: types.TemporalBillingSyncWorkflow.String(),
	})
	w.RegisterActivity(s.activities)

	if err := w.Start(); err != nil {
		c.Close()
		return ierr.WithError(err).
			WithHint("Failed to start the billing worker").
			Mark(ierr.ErrSystem)
	}
	s.worker = w

	if err := s.ensureSchedule(ctx); err != nil {
		s.logger.Errorw("failed to reconcile billing sync schedule", "error", err)
		return err
	}

	s.logger.Infow("temporal service started", "task_queue", s.taskQueue())
	return nil
}

// ensureSchedule creates the billing sync schedule, or updates its cron
// expression when it already exists
func (s *TemporalService) ensureSchedule(ctx context.Context) error {
	expression := s.cfg.BillingSync.Schedule
	if expression == "" {
		return nil
	}

	scheduleID := types.TemporalBillingSyncWorkflow.TemporalScheduleID()
	spec := client.ScheduleSpec{CronExpressions: []string{expression}}

	_, err := s.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:      scheduleID,
		Spec:    spec,
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		Action: &client.ScheduleWorkflowAction{
			ID:        "billing-sync",
			Workflow:  types.TemporalBillingSyncWorkflow.String(),
			TaskQueue: s.taskQueue(),
			Args:      []interface{}{models.BillingSyncWorkflowInput{}},
		},
	})
	if err == nil {
		s.logger.Infow("created billing sync schedule", "schedule_id", scheduleID, "cron", expression)
		return nil
	}
	if !errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		return ierr.WithError(err).
			WithHint("Failed to create the billing sync schedule").
			Mark(ierr.ErrSystem)
	}

	handle := s.client.ScheduleClient().GetHandle(ctx, scheduleID)
	err = handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(in client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			schedule := in.Description.Schedule
			schedule.Spec = &spec
			return &client.ScheduleUpdate{Schedule: &schedule}, nil
		},
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update the billing sync schedule").
			Mark(ierr.ErrSystem)
	}
	s.logger.Infow("updated billing sync schedule", "schedule_id", scheduleID, "cron", expression)
	return nil
}

func (s *TemporalService) Stop(ctx context.Context) error {
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.client != nil {
		s.client.Close()
	}
	s.logger.Infow("temporal service stopped")
	return nil
}
