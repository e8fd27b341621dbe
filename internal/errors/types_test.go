package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorString(t *testing.T) {
	err := New(ErrCodeValidationFailed, "text too long")
	assert.Equal(t, "VALIDATION_FAILED: text too long", err.Error())

	wrapped := Wrap(stderrors.New("429"), ErrCodeRateLimited, "call limited")
	assert.Equal(t, "RATE_LIMITED: call limited: 429", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrCodeTransientFailure, "fetch failed")
	assert.ErrorIs(t, err, cause)
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeRateLimited, GetCode(New(ErrCodeRateLimited, "limited")))
	assert.Equal(t, ErrCodeInternalError, GetCode(stderrors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(stderrors.New("x"), ErrCodeTransientFailure, "y")))
	assert.False(t, IsRetryable(New(ErrCodeNonRetriable, "permanent")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestRateLimitError_CarriesResetHint(t *testing.T) {
	err := NewRateLimitError("create_post", 30*time.Second, stderrors.New("429"))
	assert.Equal(t, ErrCodeRateLimited, GetCode(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 30*time.Second, GetRetryAfter(err))
}

func TestRateLimitError_NoHint(t *testing.T) {
	err := NewRateLimitError("create_post", 0, stderrors.New("429"))
	assert.Equal(t, time.Duration(0), GetRetryAfter(err))
}

func TestGetUserMessage(t *testing.T) {
	err := NewAuthorizationError(7)
	assert.Equal(t, "You are not authorized to use this bot", GetUserMessage(err))
	assert.Equal(t, "An internal error occurred", GetUserMessage(stderrors.New("plain")))
}

func TestValidationError_Context(t *testing.T) {
	err := NewValidationError("text", "exceeds 280 characters")
	assert.Equal(t, ErrCodeValidationFailed, err.Code)
	assert.Equal(t, "text", err.Context["field"])
}

func TestStoreError(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewStoreError("save", cause)
	assert.Equal(t, ErrCodeStoreWrite, err.Code)
	assert.Equal(t, "save", err.Context["operation"])
	assert.ErrorIs(t, err, cause)
}

func TestStateConflictError(t *testing.T) {
	err := NewStateConflictError("1_2_3", "confirm")
	assert.Equal(t, ErrCodeStateConflict, err.Code)
	assert.Equal(t, "1_2_3", err.Context["confirmation_key"])
	assert.False(t, IsRetryable(err))
}
