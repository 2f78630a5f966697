package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates a conflict with the current state of the resource,
	// e.g. a second processing run for a meeting that already has one.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeInvalidState indicates the resource is in a state that does not
	// permit the requested transition.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeUnsupportedMedia indicates an audio payload in a format that cannot be processed.
	ErrCodeUnsupportedMedia ErrorCode = "UNSUPPORTED_MEDIA"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInvalidToken indicates the bearer token is invalid or expired.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	// ErrCodeForbidden indicates the token lacks a required permission.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a database error.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeStorageError indicates a blob storage failure (disk full, bucket unreachable).
	ErrCodeStorageError ErrorCode = "STORAGE_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	// ErrCodeMalformedOutput indicates an external service answered with output
	// that could not be interpreted.
	ErrCodeMalformedOutput ErrorCode = "MALFORMED_OUTPUT"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeDatabaseError:      true,
	ErrCodeExternalService:    true,
	ErrCodeMalformedOutput:    true,
	ErrCodeInternal:           false,
}

// IsRetryableCode reports whether a user-triggered retry can be expected to succeed.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
