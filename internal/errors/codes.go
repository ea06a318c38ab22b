// Package errors provides structured error handling for folio.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Resource errors (archives, index locations, ledger)
//   - 3XX: Load errors (per-document rejects, commits)
//   - 4XX: Usage and validation errors
//   - 5XX: Internal and search errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryResource indicates an archive, index or ledger could not be opened.
	CategoryResource Category = "RESOURCE"
	// CategoryLoad indicates errors raised while writing documents to the index.
	CategoryLoad Category = "LOAD"
	// CategoryUsage indicates a component was driven out of its lifecycle or given bad input.
	CategoryUsage Category = "USAGE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Resource errors (200-299)
	ErrCodeResourceOpen = "ERR_201_RESOURCE_OPEN"
	ErrCodeIndexOpen    = "ERR_202_INDEX_OPEN"
	ErrCodeIndexLocked  = "ERR_203_INDEX_LOCKED"
	ErrCodeCorruptIndex = "ERR_204_CORRUPT_INDEX"
	ErrCodeArchiveRead  = "ERR_205_ARCHIVE_READ"
	ErrCodeLedger       = "ERR_206_LEDGER"

	// Load errors (300-399)
	ErrCodeDocumentRejected = "ERR_301_DOCUMENT_REJECTED"
	ErrCodeCommitFailed     = "ERR_302_COMMIT_FAILED"
	ErrCodeTransformFailed  = "ERR_303_TRANSFORM_FAILED"

	// Usage errors (400-499)
	ErrCodeUsageState   = "ERR_401_USAGE_STATE"
	ErrCodeInvalidInput = "ERR_402_INVALID_INPUT"
	ErrCodeInvalidQuery = "ERR_403_INVALID_QUERY"

	// Internal errors (500-599)
	ErrCodeSearchFailed = "ERR_501_SEARCH_FAILED"
	ErrCodeInternal     = "ERR_502_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryResource
	case '3':
		return CategoryLoad
	case '4':
		return CategoryUsage
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Only a rejected document is recoverable; the batch keeps going without it.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeDocumentRejected, ErrCodeTransformFailed:
		return SeverityError
	case ErrCodeIndexLocked:
		return SeverityWarning
	case ErrCodeConfigNotFound:
		return SeverityInfo
	}
	return SeverityFatal
}

// isRetryableCode checks if an error code represents a retryable error.
// A locked index or a half-written archive may succeed on a later attempt.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeIndexLocked, ErrCodeArchiveRead:
		return true
	default:
		return false
	}
}
