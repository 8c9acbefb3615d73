// internal/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorStatusAndCode(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   string
	}{
		{NewValidationError("bad frame", nil), http.StatusBadRequest, "VALIDATION_ERROR"},
		{NewNotFoundError("missing", nil), http.StatusNotFound, "NOT_FOUND"},
		{NewProcessingError("boom", nil), http.StatusInternalServerError, "PROCESSING_ERROR"},
		{NewRateLimitedError("slow down"), http.StatusTooManyRequests, "RATE_LIMITED"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus(), tc.err.Message)
		assert.Equal(t, tc.code, tc.err.Code)
	}
}

func TestWrapErrorKeepsType(t *testing.T) {
	base := NewValidationError("frame is empty", nil)
	wrapped := WrapError(base, "vision", ErrorTypeProcessing)

	assert.True(t, IsValidationError(wrapped))
	assert.Equal(t, "vision: frame is empty", wrapped.(*AppError).Message)
	assert.Nil(t, WrapError(nil, "x", ErrorTypeProcessing))
}

func TestAsAppError(t *testing.T) {
	plain := stderrors.New("disk full")
	app := AsAppError(plain)
	require.NotNil(t, app)
	assert.Equal(t, ErrorTypeProcessing, app.Type)
	assert.ErrorIs(t, app, plain)

	nf := NewNotFoundError("gone", nil)
	assert.Same(t, nf, AsAppError(nf))
	assert.Nil(t, AsAppError(nil))
	assert.False(t, IsNotFoundError(plain))
}
