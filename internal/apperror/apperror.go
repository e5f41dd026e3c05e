// Package apperror defines the error taxonomy shared by the service and
// handler layers.
//
// Lower layers return an *AppError wrapping one of the sentinels below. The
// HTTP layer is the only place that turns a sentinel into a status code, so
// nothing under internal/service or internal/discord knows about HTTP.
package apperror

import (
	"errors"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrUpstreamFetch  = errors.New("upstream fetch failed")
	ErrUpstreamDecode = errors.New("upstream decode failed")
)

// Messages returned to clients for upstream failures.
const (
	MsgUpstreamFetch  = "Failed to fetch user from Discord"
	MsgUpstreamDecode = "Failed to deserialize user from Discord"
)

type AppError struct {
	Err     error  // sentinel identifying the kind
	Message string // Human-readable error message, safe to show to clients
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, for logs only
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// UpstreamFetch reports that the upstream could not be reached or answered
// with a non-success status.
func UpstreamFetch(cause error) *AppError {
	return &AppError{
		Err:     ErrUpstreamFetch,
		Message: MsgUpstreamFetch,
		Cause:   cause,
	}
}

// UpstreamDecode reports that the upstream answered successfully but the
// payload could not be read as a user.
func UpstreamDecode(cause error) *AppError {
	return &AppError{
		Err:     ErrUpstreamDecode,
		Message: MsgUpstreamDecode,
		Cause:   cause,
	}
}
