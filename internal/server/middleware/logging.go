package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/depthls/internal/errors"
	"github.com/3leaps/depthls/internal/observability"
)

// RequestLogger logs one line per request at debug level, and at warn level
// for 5xx responses.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", apperrors.RequestID(r.Context())),
		}
		if ww.Status() >= http.StatusInternalServerError {
			observability.CLILogger.Warn("HTTP request failed", fields...)
			return
		}
		observability.CLILogger.Debug("HTTP request", fields...)
	})
}
