/*
Package errs provides the coded error type used at the HTTP/WebSocket
boundary.

Envelope-level domain failures travel as reason strings inside *_ERROR
payloads and never use these codes; CustomError covers only transport-side
rejections (bad parameters, rate limiting, internal faults).
*/
package errs

import (
	"fmt"
	"net/http"
)

// Application error codes.
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrRateLimitExceeded indicates that the request rate exceeded the limit.
	ErrRateLimitExceeded = 1007

	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000
)

// errorMap stores the template CustomError for every application error code.
var errorMap = map[int]CustomError{
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}

// CustomError is the coded error structure used at the transport boundary.
type CustomError struct {
	// Code is the business error code.
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the HTTP status code corresponding to this error.
	Status int
}

// Error implements the standard error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError constructs a *CustomError from a predefined code. Unknown codes
// fall back to ErrUnknown.
func NewError(code int) *CustomError {
	template, ok := errorMap[code]
	if !ok {
		template = errorMap[ErrUnknown]
	}
	return &template
}
