package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/depthls/pkg/provider"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", &provider.ProviderError{Err: provider.ErrBucketNotFound}, http.StatusNotFound, CodeNotFound},
		{"denied", fmt.Errorf("list: %w", provider.ErrAccessDenied), http.StatusForbidden, CodeAccessDenied},
		{"throttled", provider.ErrThrottled, http.StatusTooManyRequests, CodeThrottled},
		{"unavailable", provider.ErrProviderUnavailable, http.StatusBadGateway, CodeServiceUnavailable},
		{"invalid key", provider.ErrInvalidKey, http.StatusBadRequest, CodeBadRequest},
		{"deadline", fmt.Errorf("expand: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, CodeTimeout},
		{"other", assert.AnError, http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/list", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, &provider.ProviderError{Op: "ListWithDelimiter", Provider: provider.ProviderS3, Err: provider.ErrAccessDenied})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, CodeAccessDenied, body.Error.Code)
	assert.Equal(t, "req-1", body.Error.RequestID)
	assert.Contains(t, body.Error.Message, "access denied")
}

func TestWrite_Details(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, nil, http.StatusBadRequest, ErrorBody{
		Code:    CodeBadRequest,
		Message: "invalid depth",
		Details: map[string]any{"param": "depth"},
	})

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "depth", body.Error.Details["param"])
	assert.Empty(t, body.Error.RequestID)
}
