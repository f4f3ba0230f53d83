package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Engine error codes. Authorization and validation failures are surfaced to
// the caller; delivery failures are recorded per target, never thrown.
const (
	CodeInvalidArgument  = 1001
	CodePermissionDenied = 1002
	CodeNotAMember       = 1003
	CodeAlreadyResolved  = 1004
	CodeDeliveryFailed   = 1005
)

// Error is a coded error with an optional wrapped cause and stack trace.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
	Stack   string `json:"stack,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements the errors.Wrapper interface
func (e *Error) Unwrap() error { return e.Err }

// WithCode creates a new error with code
func WithCode(code int, message string) *Error {
	return &Error{Code: code, Message: message, Stack: captureStack()}
}

// WithCodef creates a new error with code and formatted message
func WithCodef(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Stack: captureStack()}
}

// Wrap wraps an error with message
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: GetCode(err), Message: message, Err: err, Stack: captureStack()}
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: GetCode(err), Message: fmt.Sprintf(format, args...), Err: err, Stack: captureStack()}
}

// New creates a new uncoded error
func New(message string) *Error {
	return &Error{Message: message, Stack: captureStack()}
}

// Domain constructors.

func InvalidArgument(format string, args ...interface{}) *Error {
	return WithCodef(CodeInvalidArgument, format, args...)
}

func PermissionDenied(format string, args ...interface{}) *Error {
	return WithCodef(CodePermissionDenied, format, args...)
}

func NotAMember(format string, args ...interface{}) *Error {
	return WithCodef(CodeNotAMember, format, args...)
}

func AlreadyResolved(format string, args ...interface{}) *Error {
	return WithCodef(CodeAlreadyResolved, format, args...)
}

func DeliveryFailed(format string, args ...interface{}) *Error {
	return WithCodef(CodeDeliveryFailed, format, args...)
}

// GetCode returns the error code, walking the wrap chain.
func GetCode(err error) int {
	var e *Error
	for errors.As(err, &e) {
		if e.Code != 0 {
			return e.Code
		}
		err = e.Err
		if err == nil {
			break
		}
	}
	return 0
}

// IsCode reports whether any error in the chain carries the given code.
func IsCode(err error, code int) bool { return GetCode(err) == code }

func IsPermissionDenied(err error) bool { return IsCode(err, CodePermissionDenied) }
func IsNotAMember(err error) bool       { return IsCode(err, CodeNotAMember) }
func IsAlreadyResolved(err error) bool  { return IsCode(err, CodeAlreadyResolved) }
func IsInvalidArgument(err error) bool  { return IsCode(err, CodeInvalidArgument) }

// HTTPStatus maps an engine error code to an HTTP status for the handler
// layer.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotAMember:
		return http.StatusNotFound
	case CodeAlreadyResolved:
		return http.StatusConflict
	case CodeDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// captureStack captures the current stack trace
func captureStack() string {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	lines := strings.Split(stack, "\n")
	if len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}
	return strings.TrimSpace(stack)
}

// Format implements fmt.Formatter
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s", e.Error())
			if e.Stack != "" {
				fmt.Fprintf(s, "\n%s", e.Stack)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprintf(s, "%s", e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
