// Package errors provides structured error handling for the gateway.
// It defines the AppError type with error codes for consistent API responses.
package errors

import (
	"errors"
	"fmt"
)

// Error codes organized by category
const (
	// General errors (1000-1099)
	CodeSuccess       = 0
	CodeUnknown       = 1000
	CodeInvalidParams = 1001
	CodeNotFound      = 1002
	CodeUnauthorized  = 1003

	// Routing errors (1100-1199), raised synchronously at submission
	CodeUnknownTask      = 1100
	CodeUnknownBackend   = 1101
	CodeUnsupportedTask  = 1102
	CodeMissingField     = 1103
	CodeNoDefaultBackend = 1104
	CodeInvalidImage     = 1105
	CodeAtCapacity       = 1106
	CodeRunnerStopped    = 1107

	// Job errors (1200-1299)
	CodeJobNotFound       = 1200
	CodeJobNotCompleted   = 1201
	CodeIllegalTransition = 1202

	// Artifact errors (1300-1399)
	CodeArtifactNotFound    = 1300
	CodeInvalidArtifactName = 1301
	CodeArtifactWrite       = 1302

	// Backend errors (1400-1499)
	CodeBackendInit     = 1400
	CodeBackendFailed   = 1401
	CodeBackendResponse = 1402

	// Storage errors (1500-1599)
	CodeDBError = 1500
)

// AppError represents a structured application error
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code int, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError
func Wrap(code int, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithDetail wraps an error with additional detail
func WrapWithDetail(code int, message string, detail string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Detail:  detail,
		Cause:   cause,
	}
}

// WithDetail returns a copy of e carrying detail.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// Is checks if the target error is an AppError with the specified code
func Is(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts error code from error, returns CodeUnknown if not AppError
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetMessage extracts message from error
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// GetDetail extracts the detail string from error, empty if not AppError
func GetDetail(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Detail
	}
	return ""
}

// Predefined common errors
var (
	ErrInvalidParams = New(CodeInvalidParams, "Invalid parameters")
	ErrNotFound      = New(CodeNotFound, "Resource not found")

	// Routing
	ErrUnknownTask      = New(CodeUnknownTask, "Invalid task")
	ErrUnknownBackend   = New(CodeUnknownBackend, "Invalid backend")
	ErrUnsupportedTask  = New(CodeUnsupportedTask, "Backend does not support task")
	ErrMissingField     = New(CodeMissingField, "Missing required field")
	ErrNoDefaultBackend = New(CodeNoDefaultBackend, "Unsupported task: no default backend")
	ErrInvalidImage     = New(CodeInvalidImage, "Invalid image payload")
	ErrAtCapacity       = New(CodeAtCapacity, "Rejected: at capacity")
	ErrRunnerStopped    = New(CodeRunnerStopped, "Job runner stopped")

	// Jobs
	ErrJobNotFound       = New(CodeJobNotFound, "Job not found")
	ErrJobNotCompleted   = New(CodeJobNotCompleted, "Job not completed")
	ErrIllegalTransition = New(CodeIllegalTransition, "Illegal job state transition")

	// Artifacts
	ErrArtifactNotFound    = New(CodeArtifactNotFound, "Artifact not found")
	ErrInvalidArtifactName = New(CodeInvalidArtifactName, "Invalid artifact name")

	// Backends
	ErrBackendFailed = New(CodeBackendFailed, "Backend inference failed")

	// Storage
	ErrDBError = New(CodeDBError, "Database error")
)
