package storage

import (
	"errors"

	apperrors "github.com/kbukum/meetscribe/errors"
)

// FromStorage converts a backend error into an AppError. Missing objects
// become NOT_FOUND; everything else is a STORAGE_ERROR for op.
func FromStorage(err error, op, path string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, ErrNotFound) {
		return apperrors.NotFound("audio", path).WithCause(err)
	}
	return apperrors.StorageError(op, err).WithDetail("path", path)
}
