// Package errors defines the typed error kinds the order engine returns.
// Callers branch on Code, never on message text.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// CodeInsufficientFunds rejects balance debits that would go negative.
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	// CodeCooldown rejects actions repeated before their waiting period elapsed.
	CodeCooldown Code = "COOLDOWN_ACTIVE"
	// CodeBusy means a row lock or serialization check lost to a concurrent
	// writer; the whole command can be retried.
	CodeBusy Code = "RESOURCE_BUSY"
)

// Metadata describes how a code surfaces outside the engine.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// retryable codes are transient: the same call may succeed later.
const (
	final     = false
	retryable = true
	opaque    = false
	detailed  = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, final, "validation failed", detailed},
	CodeForbidden:         {http.StatusForbidden, final, "access denied", opaque},
	CodeNotFound:          {http.StatusNotFound, final, "resource not found", opaque},
	CodeConflict:          {http.StatusConflict, final, "conflict detected", opaque},
	CodeStateConflict:     {http.StatusUnprocessableEntity, final, "state transition disallowed", detailed},
	CodeInternal:          {http.StatusInternalServerError, retryable, "internal server error", opaque},
	CodeDependency:        {http.StatusServiceUnavailable, retryable, "dependency unavailable", detailed},
	CodeInsufficientFunds: {http.StatusUnprocessableEntity, final, "insufficient balance", detailed},
	CodeCooldown:          {http.StatusTooManyRequests, final, "action not yet available", detailed},
	CodeBusy:              {http.StatusConflict, retryable, "resource busy, retry shortly", opaque},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// InvalidTransition reports an operation the order's current status forbids.
func InvalidTransition(op, status string) *Error {
	return Newf(CodeStateConflict, "cannot %s an order that is %s", op, status)
}

// External wraps a payment gateway or broker failure.
func External(err error, message string) *Error {
	return Wrap(CodeDependency, err, message)
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// Error renders "CODE: message", followed by the cause when there is one.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost typed error in err's chain.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost typed error in err's chain carries one
// of codes.
func IsCode(err error, codes ...Code) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	for _, code := range codes {
		if typed.code == code {
			return true
		}
	}
	return false
}

// Retryable reports whether retrying the failed call may succeed. Untyped
// errors count as internal, hence retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(As(err).Code()).Retryable
}
