// Package apierr defines the structured error body every API endpoint
// returns: a stable machine-readable code, a human message, optional details,
// and the request ID when the middleware provided one.
package apierr

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onnwee/forcemap/internal/logger"
)

// ErrorCode is a stable identifier clients can switch on. Codes are grouped
// by prefix: AUTH_, GRAPH_, LAYOUT_, SYSTEM_, VALIDATION_, RESOURCE_,
// RATE_LIMIT_.
type ErrorCode string

const (
	ErrAuthMissing   ErrorCode = "AUTH_MISSING"
	ErrAuthInvalid   ErrorCode = "AUTH_INVALID"
	ErrAuthForbidden ErrorCode = "AUTH_FORBIDDEN"

	ErrGraphNotFound      ErrorCode = "GRAPH_NOT_FOUND"
	ErrGraphInvalid       ErrorCode = "GRAPH_INVALID"
	ErrGraphQuery         ErrorCode = "GRAPH_QUERY_FAILED"
	ErrGraphTimeout       ErrorCode = "GRAPH_TIMEOUT"
	ErrGraphInvalidParams ErrorCode = "GRAPH_INVALID_PARAMS"

	ErrLayoutInvalidConfig ErrorCode = "LAYOUT_INVALID_CONFIG"
	ErrLayoutNotFound      ErrorCode = "LAYOUT_NOT_FOUND"
	ErrLayoutQueueFailed   ErrorCode = "LAYOUT_QUEUE_FAILED"
	ErrLayoutConflict      ErrorCode = "LAYOUT_CONFLICT"

	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemDatabase    ErrorCode = "SYSTEM_DATABASE"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"
	ErrSystemTimeout     ErrorCode = "SYSTEM_TIMEOUT"

	ErrValidationInvalidJSON   ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationInvalidFormat ErrorCode = "VALIDATION_INVALID_FORMAT"
	ErrValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue  ErrorCode = "VALIDATION_INVALID_VALUE"

	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrResourceConflict ErrorCode = "RESOURCE_CONFLICT"

	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error is the structured API error. The HTTP status travels with the value
// but is not serialized into the body.
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int
}

// ErrorResponse wraps an Error as the top-level response body.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates an API error with an explicit code, message and HTTP status.
func New(code ErrorCode, message string, status int) *Error {
	return &Error{Code: code, Message: message, status: status}
}

// withDefault builds an error from a caller message, falling back to the
// code's standard wording when the message is empty. All the per-code
// constructors below go through it.
func withDefault(code ErrorCode, status int, message, fallback string) *Error {
	if message == "" {
		message = fallback
	}
	return New(code, message, status)
}

// WithDetails attaches a detail map and returns the error for chaining.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithRequestID attaches a request ID and returns the error for chaining.
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code to respond with.
func (e *Error) Status() int {
	return e.status
}

// WriteError serializes err as JSON with its HTTP status.
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

func AuthMissing(message string) *Error {
	return withDefault(ErrAuthMissing, http.StatusUnauthorized, message, "Authentication required")
}

func AuthInvalid(message string) *Error {
	return withDefault(ErrAuthInvalid, http.StatusUnauthorized, message, "Invalid authentication credentials")
}

func AuthForbidden(message string) *Error {
	return withDefault(ErrAuthForbidden, http.StatusForbidden, message, "Access forbidden")
}

func GraphNotFound() *Error {
	return New(ErrGraphNotFound, "Graph not found", http.StatusNotFound)
}

func GraphInvalid(message string) *Error {
	return withDefault(ErrGraphInvalid, http.StatusBadRequest, message, "Invalid graph input")
}

func GraphQueryFailed(message string) *Error {
	return withDefault(ErrGraphQuery, http.StatusInternalServerError, message, "Graph query failed")
}

func GraphTimeout(message string) *Error {
	return withDefault(ErrGraphTimeout, http.StatusRequestTimeout, message, "Graph query timeout - dataset may be too large")
}

func GraphInvalidParams(message string) *Error {
	return withDefault(ErrGraphInvalidParams, http.StatusBadRequest, message, "Invalid graph query parameters")
}

func LayoutInvalidConfig(message string) *Error {
	return withDefault(ErrLayoutInvalidConfig, http.StatusBadRequest, message, "Invalid layout configuration")
}

func LayoutNotFound() *Error {
	return New(ErrLayoutNotFound, "Layout run not found", http.StatusNotFound)
}

func LayoutQueueFailed(message string) *Error {
	return withDefault(ErrLayoutQueueFailed, http.StatusInternalServerError, message, "Failed to queue layout run")
}

// LayoutConflict reports that the graph already has an active layout run;
// the service enforces one run per graph at a time.
func LayoutConflict(message string) *Error {
	return withDefault(ErrLayoutConflict, http.StatusConflict, message, "A layout run is already in progress for this graph")
}

func SystemInternal(message string) *Error {
	return withDefault(ErrSystemInternal, http.StatusInternalServerError, message, "Internal server error")
}

func SystemDatabase(message string) *Error {
	return withDefault(ErrSystemDatabase, http.StatusInternalServerError, message, "Database error")
}

func SystemUnavailable(message string) *Error {
	return withDefault(ErrSystemUnavailable, http.StatusServiceUnavailable, message, "Service unavailable")
}

func SystemTimeout(message string) *Error {
	return withDefault(ErrSystemTimeout, http.StatusRequestTimeout, message, "Request timeout")
}

func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

func ValidationInvalidFormat(message string) *Error {
	return withDefault(ErrValidationInvalidFormat, http.StatusBadRequest, message, "Invalid request format")
}

func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

func ValidationInvalidValue(field string, message string) *Error {
	return withDefault(ErrValidationInvalidValue, http.StatusBadRequest, message, "Invalid value for field: "+field).
		WithDetails(map[string]interface{}{"field": field})
}

func ResourceNotFound(resourceType string) *Error {
	return New(ErrResourceNotFound, resourceType+" not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"resource_type": resourceType})
}

func ResourceConflict(message string) *Error {
	return withDefault(ErrResourceConflict, http.StatusConflict, message, "Resource conflict")
}

func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// GetRequestID extracts the request ID set by the requestid middleware.
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext is WriteError plus the request ID from r's context.
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
