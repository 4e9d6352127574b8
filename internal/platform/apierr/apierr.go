package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status   int
	Code     string
	Category Category
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Category: Classify(err), Err: err}
}

// Validation is a caller input defect (400).
func Validation(err error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "validation_error", Category: CategoryValidation, Err: err}
}

// Unauthorized is an unresolvable caller identity (401).
func Unauthorized(err error) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Category: CategoryAuth, Err: err}
}

// Upstream is a generator or store dependency failure (500). The category is
// derived from the cause, so a network timeout reads as upstream while an
// unrecognized provider error stays internal.
func Upstream(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "upstream_error", Category: Classify(err), Err: err}
}

// Internal is anything unclassified (500).
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "internal_error", Category: CategoryInternal, Err: err}
}

// As unwraps err into an *Error, wrapping unknown errors as Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
