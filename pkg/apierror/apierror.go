// Package apierror carries errors that know how they render on the
// gateway's HTTP surface.
package apierror

import (
	"errors"
	"fmt"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`

	cause error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Wrap is New with cause kept for errors.Is and the cause's text as
// details.
func Wrap(cause error, code string, message string, status int) *APIError {
	e := New(code, message, "", status)
	if cause != nil {
		e.Details = cause.Error()
		e.cause = cause
	}
	return e
}

// Code returns the code of the first APIError in err's chain.
func Code(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
