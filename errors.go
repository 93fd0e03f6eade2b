package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	// CodeBinding reports a declaration that cannot be bound, detected when the proxy is built.
	CodeBinding ErrorCode = "binding"
	// CodeTransport reports a connection failure or a malformed response.
	CodeTransport ErrorCode = "transport"
	// CodeDecoding reports a body that cannot be converted to the declared result type.
	CodeDecoding ErrorCode = "decoding"

	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeUnauthenticated   ErrorCode = "unauthenticated"
	CodePermissionDenied  ErrorCode = "permission_denied"
	CodeNotFound          ErrorCode = "not_found"
	CodeMethodNotAllowed  ErrorCode = "method_not_allowed"
	CodeConflict          ErrorCode = "conflict"
	CodeGone              ErrorCode = "gone"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeCanceled          ErrorCode = "canceled"
	CodeInternal          ErrorCode = "internal"
	CodeNotImplemented    ErrorCode = "not_implemented"
	CodeUnavailable       ErrorCode = "unavailable"
	CodeDeadlineExceeded  ErrorCode = "deadline_exceeded"
	CodeUnknown           ErrorCode = "unknown"
)

// Error is the error type returned by every proxy call.
//
// For non-2xx responses on shapes other than entity, Response holds the
// response that caused the error.
type Error struct {
	Code     ErrorCode
	Message  string
	Details  map[string]any
	Response *Response
	err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// NewError creates a new error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new error with a formatted message.
// A %w verb in format is honored: the wrapped error becomes the cause.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{
		Code:    code,
		Message: wrapped.Error(),
		err:     errors.Unwrap(wrapped),
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	out := *e
	out.Details = details
	return &out
}

// WithDetails returns a new Error with the provided map merged into details.
// For multiple details, this is more efficient than chaining WithDetail calls.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	out := *e
	out.Details = merged
	return &out
}

// StatusCode returns the HTTP status of the response attached to the error,
// or 0 when the error did not come from a response.
func (e *Error) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// statusError builds the error returned for a non-2xx response.
func statusError(resp *Response) *Error {
	return &Error{
		Code:     CodeFromHTTPStatus(resp.StatusCode),
		Message:  fmt.Sprintf("%d %s from %s", resp.StatusCode, http.StatusText(resp.StatusCode), resp.target()),
		Response: resp,
	}
}

// AsError maps any error to an *Error.
// Errors that already are (or wrap) an *Error are returned as is. Joined
// errors are merged into one *Error that keeps every message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	// Joined errors take the code of the first one and keep all messages.
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := u.Unwrap(); len(errs) > 0 {
			first := AsError(errs[0])
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = AsError(e).Message
			}
			return &Error{
				Code:    first.Code,
				Message: strings.Join(msgs, "; "),
				Details: first.Details,
				err:     err,
			}
		}
	}

	var exErr *Error
	if errors.As(err, &exErr) {
		return exErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeDeadlineExceeded, Message: "request timeout", err: err}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Code: CodeCanceled, Message: "context canceled", err: err}
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		details := make(map[string]any)
		messages := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			msg := formatValidationError(ve)
			details[ve.Field()] = msg
			messages = append(messages, ve.Field()+": "+msg)
		}
		return &Error{
			Code:    CodeInvalidArgument,
			Message: strings.Join(messages, "; "),
			Details: details,
			err:     err,
		}
	}

	return &Error{Code: CodeUnknown, Message: err.Error(), err: err}
}

// transportError classifies an error returned by a Transport.
// Context errors keep their own codes, everything else is a transport failure.
func transportError(err error) *Error {
	var exErr *Error
	if errors.As(err, &exErr) {
		return exErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return AsError(err)
	}
	return &Error{Code: CodeTransport, Message: err.Error(), err: err}
}

// CodeFromHTTPStatus maps a non-2xx HTTP status to an ErrorCode.
func CodeFromHTTPStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeInvalidArgument
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusConflict:
		return CodeConflict
	case http.StatusGone:
		return CodeGone
	case http.StatusTooManyRequests:
		return CodeResourceExhausted
	case 499:
		return CodeCanceled
	case http.StatusNotImplemented:
		return CodeNotImplemented
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	case http.StatusGatewayTimeout:
		return CodeDeadlineExceeded
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeUnknown
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", ve.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", ve.Param())
	case "eq":
		return fmt.Sprintf("must equal %s", ve.Param())
	case "ne":
		return fmt.Sprintf("must not equal %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
