package types

import (
	"fmt"
	"strings"

	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/samber/lo"
)

// TemporalTaskQueue represents a logical grouping of workflows and activities
type TemporalTaskQueue string

const (
	TemporalTaskQueueBilling TemporalTaskQueue = "billing"
)

func (tq TemporalTaskQueue) String() string {
	return string(tq)
}

// TemporalWorkflowType represents the type of workflow
type TemporalWorkflowType string

const (
	TemporalBillingSyncWorkflow TemporalWorkflowType = "BillingSyncWorkflow"
)

func (w TemporalWorkflowType) String() string {
	return string(w)
}

func (w TemporalWorkflowType) Validate() error {
	allowed := []TemporalWorkflowType{
		TemporalBillingSyncWorkflow,
	}
	if lo.Contains(allowed, w) {
		return nil
	}
	return ierr.NewError("invalid workflow type").
		WithHint(fmt.Sprintf("Workflow type must be one of: %s", strings.Join(lo.Map(allowed, func(w TemporalWorkflowType, _ int) string { return string(w) }), ", "))).
		Mark(ierr.ErrValidation)
}

// TaskQueue returns the queue a workflow type is registered on
func (w TemporalWorkflowType) TaskQueue() TemporalTaskQueue {
	return TemporalTaskQueueBilling
}

// TemporalScheduleID returns the schedule id used for recurring runs of the workflow
func (w TemporalWorkflowType) TemporalScheduleID() string {
	return fmt.Sprintf("%s-schedule", strings.ToLower(string(w)))
}
