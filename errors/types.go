package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Dispatch errors
	ErrCodeInvalidAction   ErrorCode = "INVALID_ACTION"
	ErrCodeUnknownProject  ErrorCode = "UNKNOWN_PROJECT"
	ErrCodeUnknownWorktree ErrorCode = "UNKNOWN_WORKTREE"
	ErrCodeStoreClosed     ErrorCode = "STORE_CLOSED"

	// Terminal session errors
	ErrCodeUnknownSession ErrorCode = "UNKNOWN_SESSION"
	ErrCodeSpawnFailure   ErrorCode = "SPAWN_FAILURE"

	// Persistence errors
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"

	// Chat completion errors
	ErrCodeCompletionFailure  ErrorCode = "COMPLETION_FAILURE"
	ErrCodeCompletionInFlight ErrorCode = "COMPLETION_IN_FLIGHT"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
)

// StudioError represents a structured error with context
type StudioError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *StudioError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *StudioError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *StudioError) WithDetail(key string, value interface{}) *StudioError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *StudioError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new StudioError
func New(code ErrorCode, message string) *StudioError {
	return &StudioError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a StudioError
func Wrap(err error, code ErrorCode, message string) *StudioError {
	return &StudioError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific StudioError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	studioErr, ok := err.(*StudioError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return studioErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	studioErr, ok := err.(*StudioError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return studioErr.Code
}
