package models

import (
	"time"

	ierr "github.com/nutriplan/nutriplan/internal/errors"
)

// BillingSyncWorkflowInput is passed by the schedule to every BillingSyncWorkflow run.
// The zero value resumes from the stored watermark.
type BillingSyncWorkflowInput struct {
	LookbackHours int        `json:"lookback_hours,omitempty"`
	Since         *time.Time `json:"since,omitempty"`
}

func (i BillingSyncWorkflowInput) Validate() error {
	if i.LookbackHours < 0 {
		return ierr.NewError("lookback_hours must not be negative").
			WithHint("Lookback hours must be zero or positive").
			Mark(ierr.ErrValidation)
	}
	return nil
}
