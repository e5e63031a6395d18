package errors

import (
	"errors"
	"fmt"
)

// Stable error codes returned to collaborators. Handlers map these to HTTP
// statuses; clients key actionable messages off them.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeDuplicateDeviceID    = "DUPLICATE_DEVICE_ID"
	CodeDuplicateVersion     = "DUPLICATE_VERSION"
	CodeUnknownDevice        = "UNKNOWN_DEVICE"
	CodeFirmwareInUse        = "FIRMWARE_IN_USE"
	CodeHasActiveRollout     = "HAS_ACTIVE_ROLLOUT"
	CodeRolloutAlreadyActive = "ROLLOUT_ALREADY_ACTIVE"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeNonMonotonicProgress = "NON_MONOTONIC_PROGRESS"
	CodeDownloadFailed       = "DOWNLOAD_FAILED"
	CodeCancelled            = "CANCELLED"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the application error code from err, or CodeInternal when
// err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given application error code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
