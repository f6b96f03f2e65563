// Package errors provides the standardized error type used between the
// dispatch engine, the notification store and the Zeebe job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	ErrCodeNotificationNotFound ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeRecipientNotFound    ErrorCode = "RECIPIENT_NOT_FOUND"
	ErrCodeStateConflict        ErrorCode = "NOTIFICATION_STATE_CONFLICT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeEnqueueFailed   ErrorCode = "ENQUEUE_FAILED"
	ErrCodeLockUnavailable ErrorCode = "DISPATCH_LOCK_UNAVAILABLE"

	ErrCodeWorkflowEngineUnavailable ErrorCode = "WORKFLOW_ENGINE_UNAVAILABLE"
	ErrCodeWorkflowEngineRejected    ErrorCode = "WORKFLOW_ENGINE_REJECTED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewNotificationNotFoundError(id string, cause error) *StandardError {
	return newError(ErrCodeNotificationNotFound, "Notification not found",
		fmt.Sprintf("notificationId: %s", id), false, cause)
}

func NewRecipientNotFoundError(id string, cause error) *StandardError {
	return newError(ErrCodeRecipientNotFound, "Recipient not found",
		fmt.Sprintf("recipientId: %s", id), false, cause)
}

// NewStateConflictError reports a field-scoped write that matched no pending
// row, i.e. another writer already moved the notification to a terminal state.
func NewStateConflictError(id string, cause error) *StandardError {
	return newError(ErrCodeStateConflict, "Notification is no longer pending",
		fmt.Sprintf("notificationId: %s", id), false, cause)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true, err)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Input validation failed", details, false, nil)
}

func NewEnqueueFailedError(id string, err error) *StandardError {
	return newError(ErrCodeEnqueueFailed, "Failed to enqueue notification dispatch",
		fmt.Sprintf("notificationId: %s, error: %s", id, err.Error()), true, err)
}

func NewLockUnavailableError(id string) *StandardError {
	return newError(ErrCodeLockUnavailable, "Dispatch already in progress for notification",
		fmt.Sprintf("notificationId: %s", id), true, nil)
}

// NewWorkflowEngineError reports a Zeebe command failure. Transport-level
// failures are retryable, rejections are not.
func NewWorkflowEngineError(operation string, err error, retryable bool) *StandardError {
	code := ErrCodeWorkflowEngineRejected
	if retryable {
		code = ErrCodeWorkflowEngineUnavailable
	}
	return newError(code, "Workflow engine command failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), retryable, err)
}

// Wrap converts any error into a StandardError, keeping existing ones as-is.
func Wrap(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// HasCode reports whether err is a StandardError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// GetRetryCount returns how many times the job queue should retry a job that
// failed with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeEnqueueFailed,
		ErrCodeWorkflowEngineUnavailable:
		return 3
	case ErrCodeLockUnavailable:
		return 1
	default:
		return 0
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "RECIPIENT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ENQUEUE") || strings.Contains(codeStr, "LOCK"):
		return "QUEUE"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
