package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by stores, the lifecycle controller and both front ends.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeDuplicateType       = "DUPLICATE_TYPE"
	CodeDuplicateValue      = "DUPLICATE_VALUE"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodePlatformUnavailable = "PLATFORM_UNAVAILABLE"
	CodePersistence         = "PERSISTENCE_ERROR"
	CodeTimeout             = "TIMEOUT"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors. Message is always safe to show to the acting user.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewNotFound reports a missing guild, ticket type or active ticket with a user-facing message.
func NewNotFound(message string) error {
	return NewDomainError(CodeNotFound, message, http.StatusNotFound, nil)
}

func NewDuplicateType(message string) error {
	return NewDomainError(CodeDuplicateType, message, http.StatusConflict, nil)
}

func NewDuplicateValue(message string) error {
	return NewDomainError(CodeDuplicateValue, message, http.StatusConflict, nil)
}

func NewAlreadyExists(message string) error {
	return NewDomainError(CodeAlreadyExists, message, http.StatusConflict, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewPlatformUnavailable wraps a failed chat-platform call.
func NewPlatformUnavailable(message string, err error) error {
	return &DomainError{
		Code:       CodePlatformUnavailable,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewPersistenceError wraps a failed document store call.
func NewPersistenceError(message string, err error) error {
	return &DomainError{
		Code:       CodePersistence,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewTimeout(message string) error {
	return NewDomainError(CodeTimeout, message, http.StatusRequestTimeout, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{Code: CodeTimeout, Message: "The operation timed out.", HTTPStatus: http.StatusRequestTimeout, Err: err}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// UserMessage returns the message to show the acting user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Message
}
