package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InternalError is the concrete error produced by ErrorBuilder.Mark. It keeps
// the hint and reportable details next to the wrapped cause so the HTTP layer
// can render them without walking the chain.
type InternalError struct {
	Err     error
	Hint    string
	Details map[string]interface{}
}

func (e *InternalError) Error() string {
	return e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// DisplayError returns the hint if one was set, otherwise the raw message
func (e *InternalError) DisplayError() string {
	if e.Hint != "" {
		return e.Hint
	}
	return e.Err.Error()
}

// ErrorBuilder accumulates context for an error before it is marked
type ErrorBuilder struct {
	err     error
	hint    string
	details map[string]interface{}
}

// NewError starts a builder from a fresh message
func NewError(msg string) *ErrorBuilder {
	return &ErrorBuilder{err: errors.NewWithDepth(1, msg)}
}

// NewErrorf starts a builder from a formatted message
func NewErrorf(format string, args ...interface{}) *ErrorBuilder {
	return &ErrorBuilder{err: errors.NewWithDepthf(1, format, args...)}
}

// WithError starts a builder wrapping an existing error
func WithError(err error) *ErrorBuilder {
	if err == nil {
		err = errors.NewWithDepth(1, "unknown error")
	}
	return &ErrorBuilder{err: err}
}

// WithMessage prefixes the wrapped error with additional context
func (b *ErrorBuilder) WithMessage(msg string) *ErrorBuilder {
	b.err = errors.WrapWithDepth(1, b.err, msg)
	return b
}

// WithHint sets a user facing hint
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.hint = hint
	b.err = errors.WithHint(b.err, hint)
	return b
}

func (b *ErrorBuilder) WithHintf(format string, args ...interface{}) *ErrorBuilder {
	return b.WithHint(fmt.Sprintf(format, args...))
}

// WithReportableDetails attaches key/value details safe to return to callers
func (b *ErrorBuilder) WithReportableDetails(details map[string]interface{}) *ErrorBuilder {
	if b.details == nil {
		b.details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		b.details[k] = v
	}
	return b
}

// Mark tags the error with one of the sentinel errors and returns it
func (b *ErrorBuilder) Mark(reference error) error {
	marked := errors.Mark(b.err, reference)
	return &InternalError{
		Err:     marked,
		Hint:    b.hint,
		Details: b.details,
	}
}
