package shared

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryDatabase      ErrorCategory = "database"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryProcessing    ErrorCategory = "processing"
	ErrorCategoryResource      ErrorCategory = "resource"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
)

// Error codes for the workflow and synchronization failure modes. Handlers
// map these onto HTTP statuses.
const (
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeNotFound          = "NOT_FOUND"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodeDecodeFailure     = "DECODE_FAILURE"
	CodeTimeout           = "TIMEOUT"
	CodeRefreshFailed     = "REFRESH_FAILED"
)

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// NewIllegalTransition builds the rejection for an action that is not valid
// from the record's current status.
func NewIllegalTransition(action, status string) *ServiceError {
	return NewServiceError(
		ErrorCategoryValidation,
		CodeIllegalTransition,
		fmt.Sprintf("action %q is not valid for a request in status %q", action, status),
		"request-service",
		action,
		false,
		nil,
	)
}

// NewNotFound builds the rejection for an unknown record ID.
func NewNotFound(entity string, id interface{}) *ServiceError {
	return NewServiceError(
		ErrorCategoryResource,
		CodeNotFound,
		fmt.Sprintf("%s %v not found", entity, id),
		"request-service",
		"lookup",
		false,
		nil,
	)
}

// NewRemoteUnavailable wraps a failed call against the remote system of
// record. These are retryable by the sync flush machinery.
func NewRemoteUnavailable(operation string, cause error) *ServiceError {
	msg := "remote store unavailable"
	if cause != nil {
		msg = cause.Error()
	}
	return NewServiceError(ErrorCategoryNetwork, CodeRemoteUnavailable, msg, "remote-store", operation, true, cause)
}

// NewDecodeFailure reports a record that could not be decoded from the
// remote payload. Refresh skips such records instead of aborting.
func NewDecodeFailure(operation string, cause error) *ServiceError {
	msg := "malformed record"
	if cause != nil {
		msg = cause.Error()
	}
	return NewServiceError(ErrorCategoryProcessing, CodeDecodeFailure, msg, "cache-sync", operation, false, cause)
}

// NewTimeout reports a caller that waited past its bound. Distinct from a
// refresh that finished in error status.
func NewTimeout(operation string, waited time.Duration) *ServiceError {
	return NewServiceError(
		ErrorCategoryTimeout,
		CodeTimeout,
		fmt.Sprintf("%s did not finish within %s", operation, waited),
		"cache-sync",
		operation,
		true,
		nil,
	)
}

// IsCode reports whether err (or anything it wraps) is a ServiceError with
// the given code.
func IsCode(err error, code string) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func IsIllegalTransition(err error) bool { return IsCode(err, CodeIllegalTransition) }
func IsNotFound(err error) bool          { return IsCode(err, CodeNotFound) }
func IsTimeout(err error) bool           { return IsCode(err, CodeTimeout) }

// IsRetryable returns whether the error is retryable
func (e *ServiceError) IsRetryable() bool {
	return e.Retryable
}

// LogError logs the error with structured fields
func (e *ServiceError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"retryable":        e.Retryable,
		"underlying_error": e.Cause,
	}).Error("Service error occurred")
}

// WrapError wraps an existing error with service error context
func WrapError(err error, category ErrorCategory, code, serviceName, operation string, retryable bool) *ServiceError {
	if err == nil {
		return nil
	}

	// If it's already a ServiceError, just update the context
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		serviceErr.ServiceName = serviceName
		serviceErr.Operation = operation
		return serviceErr
	}

	return NewServiceError(category, code, err.Error(), serviceName, operation, retryable, err)
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.IsRetryable()
	}

	// Default heuristics for standard errors
	errorMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout", "connection refused", "connection reset",
		"temporary failure", "service unavailable", "too many requests",
		"network", "dns", "socket",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errorMsg, pattern) {
			return true
		}
	}

	return false
}
