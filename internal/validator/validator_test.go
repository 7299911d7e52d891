package validator

import (
	"testing"

	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Email string `validate:"required,email"`
	Hours int    `validate:"min=0"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&sample{Email: "a@b.com"}))

	err := ValidateRequest(&sample{Email: "nope", Hours: -1})
	assert.True(t, ierr.IsValidation(err))
}
