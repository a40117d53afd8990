package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Nels2/mcp-trmm/pkg/logging"
)

// Error types for structured error handling
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeAuth       ErrorType = "authentication"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
)

type requestIDKey struct{}

// WithRequestID stores a request ID for NewErrorWithContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ServerError represents a structured error with context
type ServerError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  int64     `json:"timestamp"`
	StackTrace string    `json:"stack_trace,omitempty"`
	cause      error
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error, if any.
func (e *ServerError) Unwrap() error { return e.cause }

// Kind returns the error type as a string.
func (e *ServerError) Kind() string { return string(e.Type) }

// HTTPStatus maps the error type to a response status.
func (e *ServerError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeNetwork:
		return http.StatusBadGateway
	case ErrorTypeDatabase:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new ServerError with context
func NewError(errType ErrorType, message string, details string) *ServerError {
	return &ServerError{
		Type:      errType,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().Unix(),
	}
}

// NewErrorWithContext creates a new ServerError with request context
func NewErrorWithContext(ctx context.Context, errType ErrorType, message string, details string) *ServerError {
	err := NewError(errType, message, details)
	err.RequestID = RequestID(ctx)
	return err
}

// WithStackTrace adds stack trace information to the error
func (e *ServerError) WithStackTrace() *ServerError {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	e.StackTrace = string(buf[:n])
	return e
}

// LogError logs the error at a level matching its type
func (e *ServerError) LogError(logger *logging.Logger) {
	logger = logging.OrDiscard(logger)
	args := []any{"type", e.Type, "error", e.Error()}
	if e.RequestID != "" {
		args = append(args, "request_id", e.RequestID)
	}
	if e.StackTrace != "" {
		args = append(args, "stack_trace", e.StackTrace)
	}

	switch e.Type {
	case ErrorTypeValidation, ErrorTypeNotFound, ErrorTypeConflict, ErrorTypeAuth:
		logger.Warn("Request error", args...)
	default:
		logger.Error("Server error", args...)
	}
}

// Wrap wraps a standard error as a ServerError
func Wrap(err error, errType ErrorType, message string) *ServerError {
	if err == nil {
		return nil
	}

	e := NewError(errType, message, err.Error())
	e.cause = err
	return e
}

// WrapWithContext wraps a standard error as a ServerError with context
func WrapWithContext(ctx context.Context, err error, errType ErrorType, message string) *ServerError {
	if err == nil {
		return nil
	}

	e := Wrap(err, errType, message)
	e.RequestID = RequestID(ctx)
	return e
}

// IsType checks if the error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Type == errType
	}
	return false
}

// GetType returns the error type if it's a ServerError, otherwise returns ErrorTypeInternal
func GetType(err error) ErrorType {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Type
	}
	return ErrorTypeInternal
}
