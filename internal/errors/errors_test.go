package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	plain := NewValidationError("bad input", nil)
	assert.Equal(t, "[VALIDATION] bad input", plain.Error())

	caused := NewRenderError("encode failed", fmt.Errorf("disk full"))
	assert.Equal(t, "[RENDER] encode failed: disk full", caused.Error())
	assert.EqualError(t, caused.Unwrap(), "disk full")
}

func TestIsTypeFollowsWrapping(t *testing.T) {
	inner := NewNotFoundError("report", "rep-1")
	wrapped := fmt.Errorf("loading: %w", inner)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsPermission(wrapped))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(fmt.Errorf("plain error")))
}

func TestTaxonomyPredicates(t *testing.T) {
	tests := []struct {
		err     error
		errType ErrorType
	}{
		{NewValidationError("v", nil), ErrTypeValidation},
		{NewInsufficientDataError("i"), ErrTypeInsufficientData},
		{NewNotFoundError("r", "1"), ErrTypeNotFound},
		{NewPermissionError("p"), ErrTypePermission},
		{NewRenderError("r", nil), ErrTypeRender},
		{NewAnalysisError("a", nil), ErrTypeAnalysis},
		{NewDispatchError("d", nil), ErrTypeDispatch},
		{NewStorageError("s", nil), ErrTypeStorage},
		{NewConfigError("c", nil), ErrTypeConfig},
	}

	for _, tt := range tests {
		assert.True(t, IsType(tt.err, tt.errType), string(tt.errType))
	}
}

func TestWithContext(t *testing.T) {
	err := NewPermissionError("denied").WithContext("report_id", "rep-1")
	assert.Equal(t, "rep-1", err.Context["report_id"])
}

func TestToAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", NewValidationError("v", nil), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"insufficient data", NewInsufficientDataError("i"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"not found", NewNotFoundError("report", "1"), http.StatusNotFound, "NOT_FOUND"},
		{"permission", NewPermissionError("p"), http.StatusForbidden, "FORBIDDEN"},
		{"dispatch", NewDispatchError("queue full", nil), http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE"},
		{"render", NewRenderError("r", nil), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"storage", NewStorageError("s", nil), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"unknown", fmt.Errorf("opaque"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := ToAPIError(tt.err)
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.code, apiErr.ErrorCode)
		})
	}
}

func TestToAPIErrorPassesThroughAPIError(t *testing.T) {
	original := ErrValidation("title", "required")
	assert.Same(t, original, ToAPIError(original))
}
