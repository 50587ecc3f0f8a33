// Package errors provides structured error handling for applyrag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and persistence errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
//
// Degraded-retrieval conditions (lexical index unavailable, native hybrid
// unsupported) are deliberately NOT errors in this taxonomy; they are
// sentinel conditions handled by the retriever's fallback paths.
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk, and persisted-state errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
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
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO and persistence errors (200-299)
	ErrCodeFileNotFound  = "ERR_201_FILE_NOT_FOUND"
	ErrCodeIndexMissing  = "ERR_202_INDEX_MISSING"
	ErrCodeStateCorrupt  = "ERR_203_STATE_CORRUPT"
	ErrCodeStateLock     = "ERR_204_STATE_LOCK"
	ErrCodeTrackerRead   = "ERR_205_TRACKER_READ"
	ErrCodeIndexCorrupt  = "ERR_206_INDEX_CORRUPT"
	ErrCodePersistFailed = "ERR_207_PERSIST_FAILED"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty     = "ERR_402_QUERY_EMPTY"
	ErrCodeQueryTooLong   = "ERR_403_QUERY_TOO_LONG"
	ErrCodeInvalidK       = "ERR_404_INVALID_K"
	ErrCodeUnknownOutcome = "ERR_405_UNKNOWN_OUTCOME"
	ErrCodeUnknownRecord  = "ERR_406_UNKNOWN_RECORD"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeEmbedFailed  = "ERR_502_EMBED_FAILED"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_504_INDEX_FAILED"
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
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the default severity for a code.
// Persistence corruption is a warning: corrupt state is treated as
// "no prior state", never fatal to a ranking operation.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStateCorrupt, ErrCodeIndexCorrupt:
		return SeverityWarning
	case ErrCodeConfigInvalid, ErrCodeInternal:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code can be
// retried by the caller. Nothing in the core retries automatically.
func isRetryableCode(code string) bool {
	return code == ErrCodeStateLock
}
