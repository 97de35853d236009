// Package errors provides the structured error taxonomy shared by the wizard, the
// form builder and the backend client.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Storage: callers of the read path never see these, they are logged and
	// turned into "absent". Writes surface them.
	ErrCodeStorageReadFailed  ErrorCode = "STORAGE_READ_FAILED"
	ErrCodeStorageWriteFailed ErrorCode = "STORAGE_WRITE_FAILED"

	ErrCodeBackendUnavailable   ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeBackendRequestFailed ErrorCode = "BACKEND_REQUEST_FAILED"
	ErrCodeBackendUnauthorized  ErrorCode = "BACKEND_UNAUTHORIZED"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_REQUIRED"

	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrCodeRequiredFieldMissing    ErrorCode = "REQUIRED_FIELD_MISSING"
	ErrCodeFormSchemaInvalid       ErrorCode = "FORM_SCHEMA_INVALID"
	ErrCodeUnsupportedQuestionType ErrorCode = "UNSUPPORTED_QUESTION_TYPE"
	ErrCodeResourceNotFound        ErrorCode = "RESOURCE_NOT_FOUND"

	ErrCodeStepTransitionInvalid ErrorCode = "STEP_TRANSITION_INVALID"
	ErrCodeRequestCancelled      ErrorCode = "REQUEST_CANCELLED"
	ErrCodeRankingUnavailable    ErrorCode = "RANKING_UNAVAILABLE"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewStorageReadFailedError wraps a key-value read failure.
func NewStorageReadFailedError(key string, err error) *StandardError {
	return newError(ErrCodeStorageReadFailed, "Failed to read persisted state",
		fmt.Sprintf("key: %s, error: %v", key, err), true, err)
}

// NewStorageWriteFailedError wraps a key-value write failure.
func NewStorageWriteFailedError(key string, err error) *StandardError {
	return newError(ErrCodeStorageWriteFailed, "Failed to persist state",
		fmt.Sprintf("key: %s, error: %v", key, err), true, err)
}

// NewBackendUnavailableError is returned when the backend could not be reached at all.
func NewBackendUnavailableError(endpoint string, err error) *StandardError {
	return newError(ErrCodeBackendUnavailable, "Backend service unavailable",
		fmt.Sprintf("endpoint: %s, error: %v", endpoint, err), true, err)
}

// NewBackendRequestFailedError is returned for non-2xx answers and undecodable bodies.
func NewBackendRequestFailedError(endpoint string, status int, details string) *StandardError {
	return newError(ErrCodeBackendRequestFailed, "Backend request failed",
		fmt.Sprintf("endpoint: %s, status: %d, body: %s", endpoint, status, details), status >= 500, nil).
		WithMetadata("status", status)
}

func NewBackendUnauthorizedError(endpoint string) *StandardError {
	return newError(ErrCodeBackendUnauthorized, "Backend rejected the credentials",
		fmt.Sprintf("endpoint: %s", endpoint), false, nil)
}

// NewAuthenticationError is returned when a session has no usable token.
func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthenticationFailed, "Login required", details, false, nil)
}

func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Validation failed", details, false, nil)
}

// NewRequiredFieldMissingError names the first required question without an answer.
func NewRequiredFieldMissingError(questionID, title string) *StandardError {
	label := title
	if label == "" {
		label = questionID
	}
	return newError(ErrCodeRequiredFieldMissing, "Please answer all required questions",
		fmt.Sprintf("question %q is required", label), false, nil).
		WithMetadata("questionId", questionID)
}

func NewFormSchemaInvalidError(details string) *StandardError {
	return newError(ErrCodeFormSchemaInvalid, "Form definition is invalid", details, false, nil)
}

func NewUnsupportedQuestionTypeError(questionType string) *StandardError {
	return newError(ErrCodeUnsupportedQuestionType, "Unsupported question type",
		fmt.Sprintf("type: %s", questionType), false, nil)
}

func NewResourceNotFoundError(resource, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("%s not found", resource), details, false, nil)
}

func NewStepTransitionError(from, to string) *StandardError {
	return newError(ErrCodeStepTransitionInvalid, "Wizard step is not reachable",
		fmt.Sprintf("from: %s, to: %s", from, to), false, nil)
}

// NewRequestCancelledError marks an agency request rejected by the agency.
func NewRequestCancelledError(agencyName string) *StandardError {
	return newError(ErrCodeRequestCancelled, "The agency request was cancelled",
		fmt.Sprintf("agency: %s", agencyName), false, nil)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// Utility Functions
// ==========================

// AsStandardError unwraps err into a StandardError, if it carries one.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "STORAGE"):
		return "STORAGE"
	case strings.HasPrefix(codeStr, "BACKEND"), strings.HasPrefix(codeStr, "AUTHENTICATION"):
		return "NETWORK"
	case strings.Contains(codeStr, "VALIDATION"),
		strings.Contains(codeStr, "REQUIRED"),
		strings.Contains(codeStr, "SCHEMA"),
		strings.Contains(codeStr, "UNSUPPORTED"),
		strings.Contains(codeStr, "NOT_FOUND"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STEP"), strings.Contains(codeStr, "CANCELLED"), strings.Contains(codeStr, "RANKING"):
		return "WIZARD"
	default:
		return "INTERNAL"
	}
}
