package validator

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateRequest runs struct tag validation and converts failures into ErrValidation
func ValidateRequest(req interface{}) error {
	err := get().Struct(req)
	if err == nil {
		return nil
	}

	details := make(map[string]interface{})
	var fields []string
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range validationErrs {
			details[fe.Field()] = fe.Tag()
			fields = append(fields, fe.Field())
		}
	}

	hint := "Request validation failed"
	if len(fields) > 0 {
		hint = "Invalid fields: " + strings.Join(fields, ", ")
	}

	return ierr.WithError(err).
		WithHint(hint).
		WithReportableDetails(details).
		Mark(ierr.ErrValidation)
}
