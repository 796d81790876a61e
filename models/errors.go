package models

import (
	"errors"
	"fmt"
)

// Error codes used for run failures and process exit reporting.
const (
	ErrCodeConfig       = "CONFIG_INVALID"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeNotFound     = "POST_NOT_FOUND"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeDelivery     = "DELIVERY_FAILED"
	ErrCodeState        = "STATE_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
)

// RunError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type RunError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a new RunError.
func NewRunError(code, message string, err error) *RunError {
	return &RunError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first RunError in err's chain, or "" if
// there is none.
func CodeOf(err error) string {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}
