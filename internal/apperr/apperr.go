package apperr

import (
	"errors"
	"net/http"
)

// Code is a stable, machine-readable error code carried to API clients.
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL_ERROR"

	// AI_* codes classify agent upstream failures.
	CodeAIInvalidArgument  Code = "AI_INVALID_ARGUMENT"
	CodeAIEndpointNotFound Code = "AI_ENDPOINT_NOT_FOUND"
	CodeAIUpstreamError    Code = "AI_UPSTREAM_ERROR"
	CodeAIServiceError     Code = "AI_SERVICE_ERROR"
)

// Error is a coded application error.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails attaches structured details and returns the same error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// From extracts a coded error, wrapping unknown errors as INTERNAL_ERROR.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Code: CodeInternal, Message: "internal error"}
}

// HTTPStatus maps an error code to its HTTP status line.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeAIInvalidArgument:
		return http.StatusBadRequest
	case CodeAIEndpointNotFound, CodeAIUpstreamError, CodeAIServiceError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
