package errors

import (
	"errors"
	"fmt"
)

// ErrUsageState matches any error raised by a component used before it was
// initialized or after it was closed.
var ErrUsageState = &FolioError{Code: ErrCodeUsageState}

// FolioError is the structured error type for folio.
type FolioError struct {
	// Code is the unique error code (e.g., "ERR_201_RESOURCE_OPEN").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *FolioError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FolioError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a FolioError with the same code.
func (e *FolioError) Is(target error) bool {
	if t, ok := target.(*FolioError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *FolioError) WithDetail(key, value string) *FolioError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *FolioError) WithSuggestion(suggestion string) *FolioError {
	e.Suggestion = suggestion
	return e
}

// New creates a FolioError. Category, severity and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *FolioError {
	return &FolioError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a FolioError from an existing error, reusing its message.
func Wrap(code string, err error) *FolioError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ResourceOpen reports an archive or other input that could not be opened.
func ResourceOpen(path string, cause error) *FolioError {
	return New(ErrCodeResourceOpen, fmt.Sprintf("cannot open %s", path), cause).
		WithDetail("path", path)
}

// IndexOpen reports an index location that could not be opened or created.
func IndexOpen(path string, cause error) *FolioError {
	return New(ErrCodeIndexOpen, fmt.Sprintf("cannot open index at %s", path), cause).
		WithDetail("path", path).
		WithSuggestion("Check that the directory is writable and not used by another folio process")
}

// UsageState reports an operation attempted outside a component's lifecycle.
func UsageState(component, op string) *FolioError {
	return New(ErrCodeUsageState, fmt.Sprintf("%s: %s called outside init/close lifecycle", component, op), nil).
		WithDetail("component", component).
		WithDetail("operation", op)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *FolioError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *FolioError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsRetryable checks if an error in the chain is a retryable FolioError.
func IsRetryable(err error) bool {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// IsFatal checks if an error in the chain has fatal severity.
func IsFatal(err error) bool {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first FolioError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// GetCategory extracts the category from the first FolioError in the chain.
func GetCategory(err error) Category {
	var fe *FolioError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}
