package utils

import (
	"errors"
	"fmt"
)

// Machine-readable failure codes for fatal, load-bearing errors.
const (
	CodeFileNotFound      = "file_not_found"
	CodeUnsupportedFormat = "unsupported_format"
	CodeEmptyDataset      = "empty_dataset"
	CodeNoNumericColumns  = "no_numeric_columns"
	CodeInvalidConfig     = "invalid_config"
	CodeInternal          = "internal"
)

// AppError wraps an operation, a machine-readable code, a human-facing
// message, and the underlying error.
type AppError struct {
	Op   string
	Code string
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Code, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, code, msg string, err error) error {
	return &AppError{Op: op, Code: code, Msg: msg, Err: err}
}

// ErrorCode extracts the machine-readable code from err, or CodeInternal
// when err carries none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
