package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with the HTTP status it should surface as.
type AppError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Unauthorized(message string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: message}
}

func BadRequest(message string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: "bad_request", Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Status: http.StatusForbidden, Code: "forbidden", Message: message}
}

func NotFound(message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: "not_found", Message: message}
}

func Conflict(message string) *AppError {
	return &AppError{Status: http.StatusConflict, Code: "conflict", Message: message}
}

func Unavailable(message string, err error) *AppError {
	return &AppError{Status: http.StatusServiceUnavailable, Code: "unavailable", Message: message, Err: err}
}

func Internal(message string, err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: "internal", Message: message, Err: err}
}

// AsAppError unwraps err to an *AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// StatusOf reports the HTTP status err maps to.
func StatusOf(err error) int {
	return AsAppError(err).Status
}
