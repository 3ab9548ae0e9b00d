package domain

import (
	"errors"
	"fmt"
)

// Error codes for the client's failure taxonomy.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeBackend     = "BACKEND_ERROR"
	ErrCodeUnreachable = "SERVICE_UNREACHABLE"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeAuth        = "AUTHENTICATION_ERROR"
)

// Validation failures caught before any network call.
var (
	ErrEmptyNarrative   = NewValidationError("text", "patient narrative must not be blank")
	ErrEmptySelection   = NewValidationError("rubrics", "at least one rubric must be selected")
	ErrMissingName      = NewValidationError("name", "name is required")
	ErrMissingEmail     = NewValidationError("email", "email is required")
	ErrInvalidEmail     = NewValidationError("email", "email address is not valid")
	ErrMissingPassword  = NewValidationError("password", "password is required")
	ErrPasswordTooShort = NewValidationError("password", "password must be at least 6 characters")
)

// ValidationError reports a locally rejected input. It never corresponds to
// a network call having been made.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// APIError carries a non-success backend response. Detail is the backend's
// human-readable message when it supplied one; user-facing text should fall
// back to a generic message when Detail is empty.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// UserMessage returns the text safe to show a practitioner: the backend's
// detail when present, otherwise a generic message.
func (e *APIError) UserMessage() string {
	if e.Detail != "" {
		return e.Detail
	}
	return "The service is unreachable. Please try again."
}

// IsValidation reports whether err is a locally raised validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthError reports whether err is a backend rejection of credentials or
// a missing/expired token.
func IsAuthError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == 401 || ae.StatusCode == 403
	}
	return false
}
