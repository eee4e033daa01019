package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/daihinmin-arena/internal/logx"
)

// APIError is the structured error body every failing request returns.
type APIError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

func (e APIError) Error() string { return e.Message }

// Error types.
const (
	ErrTypeValidation = "validation_error"
	ErrTypeNotFound   = "not_found"
	ErrTypeInternal   = "internal_error"
)

// ErrorBuilder helps construct structured errors with context.
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder.
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{errType: errType, message: message, context: map[string]any{}}
}

// WithContext adds context information to the error.
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds the request id to the error.
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// Build creates the final APIError.
func (eb *ErrorBuilder) Build() APIError {
	e := APIError{
		Type:      eb.errType,
		Message:   eb.message,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if len(eb.context) > 0 {
		e.Context = eb.context
	}
	return e
}

// ErrorHandler logs and writes structured errors.
type ErrorHandler struct {
	logger *logx.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *logx.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle writes err with status, wrapping plain errors as internal errors.
func (eh *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, status int, errType string, err error) {
	apiErr, ok := err.(APIError)
	if !ok {
		apiErr = NewError(errType, err.Error()).
			WithRequestID(middleware.GetReqID(r.Context())).
			WithContext("path", r.URL.Path).
			WithContext("method", r.Method).
			Build()
	}

	if status >= 500 {
		eh.logger.Errorf("error_occurred type=%s status=%d request_id=%s path=%s message=%q",
			apiErr.Type, status, apiErr.RequestID, r.URL.Path, apiErr.Message)
	} else {
		eh.logger.Warnf("request_rejected type=%s status=%d request_id=%s path=%s message=%q",
			apiErr.Type, status, apiErr.RequestID, r.URL.Path, apiErr.Message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Arena-Version", Version)
	w.Header().Set("X-Error-Type", apiErr.Type)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// RecoveryHandler turns panics into structured 500 responses.
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				requestID := middleware.GetReqID(r.Context())
				eh.logger.Errorf("panic_recovered request_id=%s path=%s method=%s panic=%v",
					requestID, r.URL.Path, r.Method, rvr)

				apiErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("panic", fmt.Sprintf("%v", rvr)).
					WithContext("path", r.URL.Path).
					Build()
				eh.Handle(w, r, http.StatusInternalServerError, ErrTypeInternal, apiErr)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
