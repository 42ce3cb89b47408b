// Package apperr defines the error kinds returned by the task engine and their
// mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	ETRANSITION   = "invalid_transition"
	EUNAUTHORIZED = "unauthorized"
	EINTERNAL     = "internal"
)

type Error struct {
	// Machine-readable error code.
	Code string

	// Human-readable error message.
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("medrank error: code=%s message=%s", e.Code, e.Message)
}

func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func Validation(format string, args ...any) *Error {
	return Errorf(EINVALID, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return Errorf(ENOTFOUND, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return Errorf(ETRANSITION, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return Errorf(EUNAUTHORIZED, format, args...)
}

// ErrorCode unwraps err and returns its code. Errors that are not *Error
// report EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of err. Internal errors
// are masked.
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func Is(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

var codes = map[string]int{
	EINVALID:      http.StatusBadRequest,
	ENOTFOUND:     http.StatusNotFound,
	ETRANSITION:   http.StatusConflict,
	EUNAUTHORIZED: http.StatusForbidden,
	EINTERNAL:     http.StatusInternalServerError,
}

// StatusCode maps an error code to an HTTP status. Unknown codes map to 500.
func StatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}
