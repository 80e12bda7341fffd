package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError means input was rejected by its declared schema before any remote call.
type ValidationError struct {
	Field      string
	Constraint string
	Detail     string
}

func (e *ValidationError) Error() string {
	return formatFieldError("validation failed", e.Field, e.Constraint, e.Detail)
}

// SchemaValidationError means model output does not satisfy the declared output schema.
type SchemaValidationError struct {
	Field      string
	Constraint string
	Detail     string
}

func (e *SchemaValidationError) Error() string {
	return formatFieldError("schema validation failed", e.Field, e.Constraint, e.Detail)
}

// EmptyOutputError means the model returned nothing usable.
type EmptyOutputError struct {
	Op string
}

func (e *EmptyOutputError) Error() string {
	if e.Op == "" {
		return "empty model output"
	}
	return e.Op + ": empty model output"
}

// RemoteCallError wraps network/auth/quota failures from any managed service.
type RemoteCallError struct {
	Service string
	Err     error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Service, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// Remote wraps err as a RemoteCallError unless it is nil or already typed.
func Remote(service string, err error) error {
	if err == nil {
		return nil
	}
	var rc *RemoteCallError
	if errors.As(err, &rc) {
		return err
	}
	return &RemoteCallError{Service: service, Err: err}
}

type NotAuthenticatedError struct {
	Reason string
}

func (e *NotAuthenticatedError) Error() string {
	if e.Reason == "" {
		return "not authenticated"
	}
	return "not authenticated: " + e.Reason
}

func Invalid(field, constraint, detail string) error {
	return &ValidationError{Field: field, Constraint: constraint, Detail: detail}
}

func formatFieldError(prefix, field, constraint, detail string) string {
	msg := prefix
	if field != "" {
		msg += ": " + field
	}
	if constraint != "" {
		msg += " (" + constraint + ")"
	}
	if detail != "" {
		msg += ": " + detail
	}
	return msg
}

// HTTPStatus maps the error taxonomy onto response codes.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		se *SchemaValidationError
		ee *EmptyOutputError
		re *RemoteCallError
		na *NotAuthenticatedError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &na):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &se), errors.As(err, &ee), errors.As(err, &re):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
