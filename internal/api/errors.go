// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/fu-tracker/dashboard/internal/dashboard"
	"github.com/fu-tracker/dashboard/internal/view"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewBadGatewayError creates a 502 error for a failed upstream send
func NewBadGatewayError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadGateway,
		Code:    "UPSTREAM_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// selectionError maps a dashboard selection failure onto an APIError
func selectionError(fuID string, err error) *APIError {
	switch {
	case errors.Is(err, dashboard.ErrUnknownUnit), errors.Is(err, view.ErrControlClosed):
		return NewNotFoundError("field unit", fuID)
	case errors.Is(err, view.ErrUnknownOption):
		return NewBadRequestError("satellite is not in the catalog", err)
	case errors.Is(err, dashboard.ErrStopped):
		return NewServiceUnavailableError("dashboard is shutting down")
	default:
		return NewBadGatewayError("selection command not sent", err)
	}
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
		if isDevelopment() {
			apiErr.Details = err.Error()
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}

// isDevelopment reports whether unexpected error details may be shown
func isDevelopment() bool {
	return os.Getenv("DASHBOARD_ENV") == "development"
}
