package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindProvider   Kind = "provider"
	KindSignature  Kind = "signature"
	KindBadRequest Kind = "bad_request"
	KindForbidden  Kind = "forbidden"
	KindInternal   Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{Code: code, Kind: kind, Message: message, Err: err}
}

// Validation reports a missing or malformed request field.
func Validation(message string) *Error {
	return New(http.StatusBadRequest, KindValidation, message, nil)
}

// NotFound reports an unknown order or checkout.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, KindNotFound, message, nil)
}

// Provider reports an upstream payment API failure. The message is the
// upstream one; the orchestrator replaces it before it reaches a client.
func Provider(message string, err error) *Error {
	return New(http.StatusBadRequest, KindProvider, message, err)
}

// Signature reports a webhook that failed authenticity checks.
func Signature(message string) *Error {
	return New(http.StatusForbidden, KindSignature, message, nil)
}

// BadRequest is a generic 400 carrying a user-facing message.
func BadRequest(message string, err error) *Error {
	return New(http.StatusBadRequest, KindBadRequest, message, err)
}

// Forbidden is a generic 403.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, KindForbidden, message, nil)
}

// Internal hides err behind a generic message.
func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, message, err)
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var appErr *Error
	return stderrors.As(err, &appErr) && appErr.Kind == k
}

// From converts any error into an *Error, mapping unknown errors to 500.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		appErr := From(c.Errors.Last().Err)
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
