package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(http.StatusNotFound, "NOT_FOUND", "thing not found")
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "NOT_FOUND", err.ErrorCode)
	assert.Equal(t, "thing not found", err.Error())
	assert.Nil(t, err.Details)
}

func TestNewWithDetails(t *testing.T) {
	err := NewWithDetails(http.StatusConflict, "MAPPING_AMBIGUOUS", "conflict", "raw detail")
	assert.Equal(t, "raw detail", err.Details)
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{ErrMappingNotFound, http.StatusNotFound, "MAPPING_NOT_FOUND"},
		{ErrMappingAmbiguous, http.StatusConflict, "MAPPING_AMBIGUOUS"},
		{ErrFormatUnrecognized, http.StatusUnprocessableEntity, "FORMAT_UNRECOGNIZED"},
		{ErrSourceNotFound, http.StatusNotFound, "SOURCE_NOT_FOUND"},
		{ErrJobNotFound, http.StatusNotFound, "JOB_NOT_FOUND"},
		{ErrValidationFailed, http.StatusBadRequest, "VALIDATION_FAILED"},
		{ErrRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
		})
	}
}

func TestErrValidation(t *testing.T) {
	err := ErrValidation("specialty", "is required")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)

	details, ok := err.Details.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "specialty", details.Field)
	assert.Equal(t, "is required", details.Message)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrMappingNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "MAPPING_NOT_FOUND", resp.Error.ErrorCode)
}
