// Package errors provides structured error handling for ragsync.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Source and file I/O errors
//   - 3XX: Network errors (embedding provider, vector store)
//   - 4XX: Validation errors (auth, collection, model)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategorySource indicates source acquisition and file I/O errors.
	CategorySource Category = "SOURCE"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates auth, collection, and model errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error; the sync must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the sync can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound    = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_102_CONFIG_INVALID"
	ErrCodeCredentialMissing = "ERR_103_CREDENTIAL_MISSING"

	// Source errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeFileUnreadable = "ERR_203_FILE_UNREADABLE"
	ErrCodeArchiveExtract = "ERR_204_ARCHIVE_EXTRACT"
	ErrCodeCloneFailed    = "ERR_205_CLONE_FAILED"
	ErrCodeDownloadFailed = "ERR_206_DOWNLOAD_FAILED"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeEmbedFailed        = "ERR_303_EMBED_FAILED"
	ErrCodeUpsertFailed       = "ERR_304_UPSERT_FAILED"

	// Validation errors (400-499)
	ErrCodeAuthFailed         = "ERR_401_AUTH_FAILED"
	ErrCodeModelNotFound      = "ERR_402_MODEL_NOT_FOUND"
	ErrCodeCollectionNotFound = "ERR_403_COLLECTION_NOT_FOUND"
	ErrCodeCollectionExists   = "ERR_404_COLLECTION_EXISTS"
	ErrCodeDimensionMismatch  = "ERR_405_DIMENSION_MISMATCH"
	ErrCodeInvalidInput       = "ERR_406_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeCancelled      = "ERR_502_CANCELLED"
	ErrCodeChunkingFailed = "ERR_503_CHUNKING_FAILED"
	ErrCodeJobFailed      = "ERR_504_JOB_FAILED"
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
		return CategorySource
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Errors that must abort the whole sync
	switch code {
	case ErrCodeAuthFailed, ErrCodeModelNotFound, ErrCodeCollectionNotFound,
		ErrCodeDimensionMismatch, ErrCodeCredentialMissing:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable,
		ErrCodeEmbedFailed, ErrCodeUpsertFailed:
		return true
	default:
		return false
	}
}
