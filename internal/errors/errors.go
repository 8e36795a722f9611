// Package errors provides coded errors for the QoC pipeline and its HTTP API.
//
// Every stage of a check returns one of these when it cannot produce a result.
// The Message is the user-facing text that ends up in the verdict, so it must be
// readable on its own; the wrapped cause is only logged.
//
//	if errors.Is(err, errors.ErrToolMissing) {
//	    // ffmpeg or ffprobe is not installed
//	}
//
//	var qocErr *errors.Error
//	if errors.As(err, &qocErr) {
//	    lines = append(lines, qocErr.Message)
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes. The first block is the QoC taxonomy; the second is used by the API only.
const (
	CodeURLResolution     Code = "URL_RESOLUTION"
	CodeNetwork           Code = "NETWORK"
	CodeUnrecognizedMedia Code = "UNRECOGNIZED_MEDIA"
	CodeToolMissing       Code = "TOOL_MISSING"
	CodeDecode            Code = "DECODE"
	CodeAnalysis          Code = "ANALYSIS"

	CodeValidation  Code = "VALIDATION"
	CodeRateLimited Code = "RATE_LIMITED"
	CodeInternal    Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeURLResolution, CodeValidation:
		return http.StatusBadRequest
	case CodeNetwork, CodeUnrecognizedMedia:
		return http.StatusBadGateway
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeToolMissing:
		return http.StatusServiceUnavailable
	case CodeDecode, CodeAnalysis:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a coded error with a user-facing message and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrURLResolution     = &Error{Code: CodeURLResolution, Message: "url cannot be resolved"}
	ErrNetwork           = &Error{Code: CodeNetwork, Message: "network error"}
	ErrUnrecognizedMedia = &Error{Code: CodeUnrecognizedMedia, Message: "unrecognized media"}
	ErrToolMissing       = &Error{Code: CodeToolMissing, Message: "external tool missing"}
	ErrDecode            = &Error{Code: CodeDecode, Message: "decode error"}
	ErrAnalysis          = &Error{Code: CodeAnalysis, Message: "analysis error"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation error"}
	ErrRateLimited       = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal error"}
)

// URLResolutionf creates a URL resolution error with formatted message.
func URLResolutionf(format string, args ...any) *Error {
	return &Error{Code: CodeURLResolution, Message: fmt.Sprintf(format, args...)}
}

// Network creates a network error.
func Network(msg string) *Error {
	return &Error{Code: CodeNetwork, Message: msg}
}

// UnrecognizedMedia creates an unrecognized media error.
func UnrecognizedMedia(msg string) *Error {
	return &Error{Code: CodeUnrecognizedMedia, Message: msg}
}

// UnrecognizedMediaf creates an unrecognized media error with formatted message.
func UnrecognizedMediaf(format string, args ...any) *Error {
	return &Error{Code: CodeUnrecognizedMedia, Message: fmt.Sprintf(format, args...)}
}

// ToolMissing creates the error reported when an external command cannot be started.
func ToolMissing(tool string) *Error {
	return &Error{
		Code:    CodeToolMissing,
		Message: fmt.Sprintf("ERROR: %s failed to run (make sure the command '%s' can run).", tool, tool),
	}
}

// Decode creates a decode error.
func Decode(msg string) *Error {
	return &Error{Code: CodeDecode, Message: msg}
}

// Decodef creates a decode error with formatted message.
func Decodef(format string, args ...any) *Error {
	return &Error{Code: CodeDecode, Message: fmt.Sprintf(format, args...)}
}

// Analysisf creates an analysis error with formatted message.
func Analysisf(format string, args ...any) *Error {
	return &Error{Code: CodeAnalysis, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// RateLimited creates a rate limit error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// UserMessage returns the text to show for err: the coded message when err
// carries one, err.Error() otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
