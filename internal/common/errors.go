package common

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/joseph-ayodele/receipts-intake/constants"
)

// AppError represents application-specific errors. Path is the file or folder
// the error is about; it is always part of the message.
type AppError struct {
	Code    constants.ErrorCode
	Message string
	Path    string
	Cause   error
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
)

// NewAppError builds an AppError.
func NewAppError(code constants.ErrorCode, message, path string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}

// WrapFSError classifies cause and wraps it with message and path.
func WrapFSError(cause error, message, path string) *AppError {
	return NewAppError(Classify(cause), message, path, cause)
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none.
func CodeOf(err error) constants.ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code constants.ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Classify maps an OS-level error onto the file-system taxonomy.
// Errors that match nothing specific are reported as DISK_IO_ERROR.
func Classify(err error) constants.ErrorCode {
	if err == nil {
		return ""
	}
	if code := CodeOf(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return constants.FileNotFound
	case errors.Is(err, fs.ErrExist):
		return constants.FileExists
	case errors.Is(err, fs.ErrPermission):
		return constants.FilePermissionDenied
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.ETXTBSY), errors.Is(err, syscall.EAGAIN):
		return constants.FileLocked
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return constants.DiskSpaceFull
	case errors.Is(err, syscall.ENOMEM):
		return constants.MemoryInsufficient
	case errors.Is(err, syscall.ENAMETOOLONG), errors.Is(err, syscall.EINVAL), errors.Is(err, fs.ErrInvalid):
		return constants.InvalidPath
	default:
		return constants.DiskIOError
	}
}
