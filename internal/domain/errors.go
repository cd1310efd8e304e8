package domain

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrUsageLogFailed      = errors.New("usage log failed")
	ErrAuthRequired        = errors.New("authentication required")
	ErrAuthForbidden       = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrTenantDisabled      = errors.New("multi-tenant support not configured")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Error attaches a client facing detail and an optional status hint to one
// of the sentinel kinds above. errors.Is matches both the kind and the cause.
type Error struct {
	Kind   error
	Detail string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Invalid(detail string) error {
	return &Error{Kind: ErrInvalidRequest, Detail: detail}
}

func NotFound(detail string) error {
	return &Error{Kind: ErrNotFound, Detail: detail}
}

func Conflict(detail string) error {
	return &Error{Kind: ErrConflict, Detail: detail}
}

// GenerationFailed wraps an upstream failure. status may be zero.
func GenerationFailed(status int, detail string, err error) error {
	return &Error{Kind: ErrGenerationFailed, Detail: detail, Status: status, Err: err}
}

func StorageUnavailable(err error) error {
	return &Error{Kind: ErrStorageUnavailable, Err: err}
}

// HTTPStatus maps an error to the response status used at the HTTP boundary.
func HTTPStatus(err error) int {
	var de *Error
	if errors.As(err, &de) && de.Status != 0 {
		return de.Status
	}
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrTenantDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnsupportedPlatform):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the human readable part of err suitable for a response body.
func Detail(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if de.Detail != "" {
			return de.Detail
		}
		if de.Err != nil {
			return de.Err.Error()
		}
		return de.Kind.Error()
	}
	return err.Error()
}
