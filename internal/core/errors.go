package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers
const (
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInvalidJSON            = "INVALID_JSON"
	CodeInvalidField           = "INVALID_FIELD"
	CodeServiceNotFound        = "SERVICE_NOT_FOUND"
	CodeConfigError            = "CONFIG_ERROR"
	CodeInvalidServiceResponse = "INVALID_SERVICE_RESPONSE"
	CodeForwardError           = "FORWARD_ERROR"
	CodeUnsupportedType        = "UNSUPPORTED_TYPE"
	CodeInternalError          = "INTERNAL_ERROR"
)

// Error is a caller-visible gateway failure. Message is safe to return to the
// client; Err holds the underlying cause and is only logged.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Code, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// ErrUnauthorized is returned for a missing or wrong bearer token
func ErrUnauthorized() *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "Unauthorized"}
}

// ErrInvalidJSON is returned when a body that must be JSON is not
func ErrInvalidJSON(message string, cause error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidJSON, Message: message, Err: cause}
}

// ErrInvalidField is returned when a required input field is missing or malformed
func ErrInvalidField(message string, cause error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidField, Message: message, Err: cause}
}

// ErrServiceNotFound is returned when no route matches the key
func ErrServiceNotFound() *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeServiceNotFound, Message: "Endpoint Not Found"}
}

// ErrConfig is returned when a resolved route cannot be used as configured
func ErrConfig(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeConfigError, Message: "Gateway configuration error", Err: cause}
}

// ErrInvalidServiceResponse is returned when a downstream breaks its response contract
func ErrInvalidServiceResponse(cause error) *Error {
	return &Error{Status: http.StatusBadGateway, Code: CodeInvalidServiceResponse, Message: "Invalid service response", Err: cause}
}

// ErrForward is returned when a downstream call fails or times out
func ErrForward(message string, cause error) *Error {
	return &Error{Status: http.StatusBadGateway, Code: CodeForwardError, Message: message, Err: cause}
}

// ErrUnsupportedType is returned when no adapter serves the route type
func ErrUnsupportedType(kind string) *Error {
	return &Error{Status: http.StatusNotImplemented, Code: CodeUnsupportedType, Message: "Unsupported service type: " + kind}
}

// ErrInternal is the last-resort failure; the cause is never shown to clients
func ErrInternal(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternalError, Message: "Gateway processing failed", Err: cause}
}
