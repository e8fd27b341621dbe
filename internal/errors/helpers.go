package errors

import (
	"fmt"
	"time"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewRateLimitError creates a rate-limit error carrying the transport's
// reset hint when one was provided
func NewRateLimitError(operation string, resetHint time.Duration, err error) *AppError {
	appErr := WrapRetryable(err, ErrCodeRateLimited, fmt.Sprintf("%s hit the rate limit", operation)).
		WithContext("operation", operation).
		WithUserMessage("The service is rate limiting requests, please try again later")
	if resetHint > 0 {
		appErr = appErr.WithRetryAfter(resetHint)
	}
	return appErr
}

// NewNonRetriableError creates a permanent API failure (bad request,
// forbidden, unauthorized) that must never be retried
func NewNonRetriableError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeNonRetriable, fmt.Sprintf("%s failed permanently", operation)).
		WithContext("operation", operation).
		WithUserMessage("The request was rejected, check content and credentials")
}

// NewTransientError creates a retryable network-class failure
func NewTransientError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeTransientFailure, fmt.Sprintf("%s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("A temporary failure occurred, please try again")
}

// NewAuthorizationError creates an authorization error for an unentitled caller
func NewAuthorizationError(requesterID int64) *AppError {
	return New(ErrCodeAuthorizationDenied, "requester is not authorized").
		WithContext("requester_id", requesterID).
		WithUserMessage("You are not authorized to use this bot")
}

// NewStateConflictError creates the gentle no-op outcome for a confirmation
// operation attempted in the wrong state
func NewStateConflictError(key, operation string) *AppError {
	return New(ErrCodeStateConflict, fmt.Sprintf("%s not valid for current state", operation)).
		WithContext("confirmation_key", key).
		WithContext("operation", operation).
		WithUserMessage("This request is no longer pending")
}

// NewStoreError creates a storage error with operation context
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStoreWrite, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Storage operation failed")
}
