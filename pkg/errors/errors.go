package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeAuthRequired       Code = "AUTH_REQUIRED"
	CodeAuthExpired        Code = "AUTH_EXPIRED"
	CodeNetworkUnavailable Code = "NETWORK_UNAVAILABLE"
	CodeServerRejected     Code = "SERVER_REJECTED"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	RequiresLogin bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeAuthRequired: {
		HTTPStatus:    http.StatusUnauthorized,
		Retryable:     false,
		RequiresLogin: true,
		PublicMessage: "authentication required",
	},
	CodeAuthExpired: {
		HTTPStatus:    http.StatusUnauthorized,
		Retryable:     true,
		RequiresLogin: false,
		PublicMessage: "credential expired",
	},
	CodeNetworkUnavailable: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Retryable:     false,
		RequiresLogin: false,
		PublicMessage: "network unavailable",
	},
	CodeServerRejected: {
		HTTPStatus:    http.StatusUnprocessableEntity,
		Retryable:     false,
		RequiresLogin: false,
		PublicMessage: "request rejected",
	},
	CodeValidation: {
		HTTPStatus:    http.StatusBadRequest,
		Retryable:     false,
		RequiresLogin: false,
		PublicMessage: "validation failed",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     false,
		RequiresLogin: false,
		PublicMessage: "internal error",
	},
}

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

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
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

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

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

// CodeOf extracts the typed code from err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsAuthFailure reports whether err is an authentication-class failure,
// meaning the caller should treat the session as unusable until login.
func IsAuthFailure(err error) bool {
	switch CodeOf(err) {
	case CodeAuthRequired, CodeAuthExpired:
		return true
	default:
		return false
	}
}
