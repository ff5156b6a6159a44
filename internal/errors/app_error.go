// Package errors defines the application error taxonomy shared by the stores
// and the HTTP layer. Every error that reaches a handler is either an *AppError
// or is treated as an internal failure.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes carried in AppError.Code.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

// AppError represents a structured application error.
type AppError struct {
	// HTTPStatusCode is the HTTP status code to return.
	HTTPStatusCode int `json:"-"`
	// Code is an internal error code string.
	Code string `json:"code"`
	// Message is the user-facing error message.
	Message string `json:"message"`
	// Details provides additional error context (optional).
	Details map[string]interface{} `json:"details,omitempty"`
	// Err is the underlying error (not marshaled to JSON).
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code so callers can compare against the
// package sentinels with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// ToJSON returns the JSON byte representation of the error.
func (e *AppError) ToJSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// New creates a new AppError.
func New(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		HTTPStatusCode: statusCode,
		Code:           code,
		Message:        message,
		Err:            err,
	}
}

// Sentinels for errors.Is comparisons. Only the Code is significant.
var (
	ErrValidation = &AppError{Code: CodeValidation}
	ErrNotFound   = &AppError{Code: CodeNotFound}
)

// Validation reports a missing or malformed input field. The message always
// names the field.
func Validation(field, message string) *AppError {
	e := New(http.StatusBadRequest, CodeValidation, message, nil)
	e.Details = map[string]interface{}{"field": field}
	return e
}

// NotFound reports an absent resource.
func NotFound(message string) *AppError {
	return New(http.StatusNotFound, CodeNotFound, message, nil)
}

// StoreUnavailable wraps a persistence failure. message is the generic text
// shown to callers; the backend error stays in Err for logging.
func StoreUnavailable(message string, err error) *AppError {
	return New(http.StatusInternalServerError, CodeStoreUnavailable, message, err)
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *AppError {
	return New(http.StatusInternalServerError, CodeInternal, message, err)
}

// As extracts an *AppError from err. Errors of any other type are converted
// into an internal error carrying fallbackMessage so backend text never leaks.
func As(err error, fallbackMessage string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(fallbackMessage, err)
}

// IsNotFound reports whether err is a NotFound application error.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a Validation application error.
func IsValidation(err error) bool {
	return stderrors.Is(err, ErrValidation)
}
