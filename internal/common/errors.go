package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrPaymentRequired = errors.New("workspace access inactive")
	ErrConflict        = errors.New("conflicting operation in flight")
	ErrUpstream        = errors.New("upstream returned malformed response")
	ErrInternal        = errors.New("internal error")
	ErrDatabase        = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps the error taxonomy onto a response status. Anything
// unrecognized is a 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON error envelope. Debug fields are only populated
// when the server runs with DEBUG_ERRORS=true.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ToErrorBody flattens an error into the response envelope.
func ToErrorBody(err error, debug bool) ErrorBody {
	var appErr *AppError
	if errors.As(err, &appErr) {
		body := ErrorBody{Code: appErr.Code, Message: appErr.Message}
		if debug && appErr.Cause != nil {
			body.Detail = appErr.Cause.Error()
		}
		return body
	}
	body := ErrorBody{Code: "INTERNAL", Message: "internal error"}
	if debug {
		body.Detail = err.Error()
	}
	return body
}
