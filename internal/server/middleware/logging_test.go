package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/3leaps/depthls/internal/observability"
)

func TestRequestLogger(t *testing.T) {
	orig := observability.CLILogger
	defer func() { observability.CLILogger = orig }()

	var buf bytes.Buffer
	logger, err := observability.NewLogger("debug", "json", zapcore.AddSync(&buf))
	require.NoError(t, err)
	observability.CLILogger = logger

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	RequestID(RequestLogger(handler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/list", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"path":"/v1/list"`)
	assert.Contains(t, buf.String(), `"status":418`)
}
