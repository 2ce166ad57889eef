package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsAppError_ThroughWrapping(t *testing.T) {
	base := NewNotFound("assessment", "abc")
	wrapped := fmt.Errorf("load assessment: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, appErr.Code)
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(wrapped))
	assert.True(t, IsNotFound(wrapped))
}

func TestGetHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.False(t, IsAppError(errors.New("boom")))
}

func TestGateway_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewGateway("create_order", cause)

	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "create_order", err.Details["operation"])
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWithDetail_InitializesMap(t *testing.T) {
	err := NewValidation("amount must be positive").WithDetail("field", "amount")
	assert.Equal(t, "amount", err.Details["field"])
	assert.True(t, HasCode(err, CodeValidation))
	assert.False(t, HasCode(err, CodeConflict))
}
