package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkAndPredicates(t *testing.T) {
	err := NewError("subscription missing").
		WithHint("Subscription was not found").
		WithReportableDetails(map[string]interface{}{"provider_subscription_id": "sub_1"}).
		Mark(ErrNotFound)

	assert.True(t, IsNotFound(err))
	assert.False(t, IsAlreadyExists(err))
	assert.Equal(t, "subscription missing", err.Error())

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsNotFound(wrapped))
}

func TestWithErrorNil(t *testing.T) {
	err := WithError(nil).Mark(ErrInternal)
	assert.Error(t, err)
	assert.True(t, Is(err, ErrInternal))
}

func TestHTTPStatusFromErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", NewError("x").Mark(ErrNotFound), http.StatusNotFound},
		{"conflict", NewError("x").Mark(ErrAlreadyExists), http.StatusConflict},
		{"validation", NewError("x").Mark(ErrValidation), http.StatusBadRequest},
		{"unauthorized", NewError("x").Mark(ErrUnauthorized), http.StatusUnauthorized},
		{"forbidden", NewError("x").Mark(ErrPermissionDenied), http.StatusForbidden},
		{"upstream", NewError("x").Mark(ErrHTTPClient), http.StatusBadGateway},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromErr(tt.err))
		})
	}
}

func TestNewErrorResponseUsesHint(t *testing.T) {
	err := NewError("raw failure").
		WithHint("Friendly message").
		WithReportableDetails(map[string]interface{}{"user_id": "u1"}).
		Mark(ErrValidation)

	resp := NewErrorResponse(err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Friendly message", resp.Error.Display)
	assert.Equal(t, "raw failure", resp.Error.InternalError)
	assert.Equal(t, "u1", resp.Error.Details["user_id"])
}
