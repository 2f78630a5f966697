// Package errors defines the service-wide AppError type with machine-readable
// codes, HTTP status mapping and retryable classification.
package errors
