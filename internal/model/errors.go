package model

import "errors"

var (
	// Session related errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginFailed        = errors.New("login failed")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired")

	// Backend related errors
	ErrBackendUnavailable = errors.New("backend unavailable")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
