// Package errors renders errors as the JSON envelope shared by every HTTP
// response: {"error":{"code","message","details","request_id"}}.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/3leaps/depthls/pkg/provider"
)

// Error codes used in HTTP envelopes.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeThrottled          = "THROTTLED"
	CodeTimeout            = "TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorBody is the inner error object.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the envelope written for every error response.
type HTTPErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type requestIDKey struct{}

// WithRequestID stores a request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Write sends an error envelope with status.
func Write(w http.ResponseWriter, r *http.Request, status int, body ErrorBody) {
	if body.RequestID == "" && r != nil {
		body.RequestID = RequestID(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: body})
}

// RespondWithError maps err to a status and code and writes the envelope.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	Write(w, r, status, ErrorBody{Code: code, Message: err.Error()})
}

// Classify maps err to an HTTP status and envelope code.
func Classify(err error) (int, string) {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case stderrors.Is(err, context.Canceled):
		// Client went away; the status is never seen.
		return 499, CodeTimeout
	}
	switch provider.Classify(err) {
	case "NOT_FOUND":
		return http.StatusNotFound, CodeNotFound
	case "ACCESS_DENIED":
		return http.StatusForbidden, CodeAccessDenied
	case "THROTTLED":
		return http.StatusTooManyRequests, CodeThrottled
	case "UNAVAILABLE":
		return http.StatusBadGateway, CodeServiceUnavailable
	case "INVALID_ARGUMENT":
		return http.StatusBadRequest, CodeBadRequest
	}
	return http.StatusInternalServerError, CodeInternal
}
