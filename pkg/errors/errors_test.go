package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := New(CodeEventNotFound, "event not found")
	assert.Equal(t, "[3001] event not found", err.Error())

	wrapped := err.WithError(errors.New("record not found"))
	assert.Equal(t, "[3001] event not found: record not found", wrapped.Error())
}

func TestAppError_WithDetailClones(t *testing.T) {
	detailed := ErrDimensionMismatch.WithDetail("expected 1536, got 768")

	assert.Equal(t, "expected 1536, got 768", detailed.Detail)
	// 预定义错误本身不可被污染
	assert.Empty(t, ErrDimensionMismatch.Detail)
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrDatabase.WithError(cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(fmt.Errorf("query: %w", err), CodeDatabaseError))
}

func TestAppError_Retryable(t *testing.T) {
	assert.True(t, ErrUpstreamUnavailable.Retryable())
	assert.True(t, ErrMalformedExtraction.Retryable())
	assert.True(t, ErrSessionConflict.Retryable())
	assert.True(t, ErrTooManyRequests.Retryable())

	assert.False(t, ErrEmptyInput.Retryable())
	assert.False(t, ErrDimensionMismatch.Retryable())
	assert.False(t, ErrEventNotFound.Retryable())
}

func TestCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{ErrEmptyInput, http.StatusBadRequest},
		{ErrInvalidEventDraft, http.StatusBadRequest},
		{ErrEventNotFound, http.StatusNotFound},
		{ErrSessionNotFound, http.StatusNotFound},
		{ErrSessionConflict, http.StatusConflict},
		{ErrMalformedExtraction, http.StatusUnprocessableEntity},
		{ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{ErrTooManyRequests, http.StatusTooManyRequests},
		{ErrDatabase, http.StatusInternalServerError},
		{ErrDimensionMismatch, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.HTTPStatus, string(tt.err.Code))
	}
}

func TestAsAppError(t *testing.T) {
	appErr := AsAppError(ErrEventNotFound)
	assert.Equal(t, CodeEventNotFound, appErr.Code)

	// 包装链中的 AppError 也能取出
	wrapped := fmt.Errorf("handler: %w", ErrSessionConflict)
	assert.Equal(t, CodeSessionConflict, AsAppError(wrapped).Code)

	// 普通错误归为 unknown
	plain := AsAppError(errors.New("boom"))
	assert.Equal(t, CodeUnknown, plain.Code)
	assert.False(t, IsAppError(errors.New("boom")))
}
