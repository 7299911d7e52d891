package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/nutriplan/nutriplan/internal/api/dto"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	activities "github.com/nutriplan/nutriplan/internal/temporal/activities/billing"
	"github.com/nutriplan/nutriplan/internal/temporal/models"
	"github.com/nutriplan/nutriplan/internal/types"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"
)

// scriptedSyncService fails with the queued errors before succeeding
type scriptedSyncService struct {
	errs  []error
	calls []dto.IncrementalSyncOptions
}

func (s *scriptedSyncService) RunIncrementalSync(_ context.Context, opts dto.IncrementalSyncOptions) (*dto.SyncResult, error) {
	s.calls = append(s.calls, opts)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &dto.SyncResult{Mode: types.SyncModeIncremental, SubscriptionsPersisted: 3}, nil
}

func (s *scriptedSyncService) RunManualSync(context.Context, dto.ManualSyncOptions) (*dto.SyncResult, error) {
	return nil, nil
}

func (s *scriptedSyncService) CancelSubscription(context.Context, string) (*dto.SyncResult, error) {
	return nil, nil
}

func (s *scriptedSyncService) TokenMetadata(context.Context, bool) (*dto.TokenMetadataResponse, error) {
	return nil, nil
}

type BillingSyncWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
	svc *scriptedSyncService
}

func TestBillingSyncWorkflow(t *testing.T) {
	suite.Run(t, new(BillingSyncWorkflowSuite))
}

func (s *BillingSyncWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.svc = &scriptedSyncService{}
	s.env.RegisterActivity(activities.NewBillingSyncActivities(s.svc))
}

func (s *BillingSyncWorkflowSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func (s *BillingSyncWorkflowSuite) TestCompletes() {
	since := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	s.env.ExecuteWorkflow(BillingSyncWorkflow, models.BillingSyncWorkflowInput{LookbackHours: 6, Since: &since})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result dto.SyncResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(3, result.SubscriptionsPersisted)

	s.Require().Len(s.svc.calls, 1)
	s.Equal(6, s.svc.calls[0].LookbackHours)
	s.True(s.svc.calls[0].Since.Equal(since))
}

func (s *BillingSyncWorkflowSuite) TestRetriesTransientFailures() {
	s.svc.errs = []error{ierr.NewError("upstream unavailable").Mark(ierr.ErrHTTPClient)}

	s.env.ExecuteWorkflow(BillingSyncWorkflow, models.BillingSyncWorkflowInput{})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	s.Len(s.svc.calls, 2)
}

func (s *BillingSyncWorkflowSuite) TestSyncInProgressIsNotRetried() {
	s.svc.errs = []error{ierr.NewError("sync already in progress").Mark(ierr.ErrAlreadyExists)}

	s.env.ExecuteWorkflow(BillingSyncWorkflow, models.BillingSyncWorkflowInput{})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.Len(s.svc.calls, 1)
}

func (s *BillingSyncWorkflowSuite) TestRejectsNegativeLookback() {
	s.env.ExecuteWorkflow(BillingSyncWorkflow, models.BillingSyncWorkflowInput{LookbackHours: -1})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.Empty(s.svc.calls)
}
