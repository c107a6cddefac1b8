package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrSessionExpired is returned to every request that waited on a
	// refresh that failed.
	ErrSessionExpired = errors.New("session expired")

	// ErrNoRefreshToken means there is nothing to refresh with.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrNoAccessToken means the backend answered 2xx without a token.
	ErrNoAccessToken = errors.New("response carried no access token")
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is a StatusError with one of the codes.
func IsStatus(err error, codes ...int) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	for _, code := range codes {
		if statusErr.Status == code {
			return true
		}
	}
	return false
}

func newStatusError(status int, body []byte) *StatusError {
	return &StatusError{Status: status, Message: extractMessage(body)}
}

// extractMessage pulls a human readable message out of the common error
// body shapes: {message}, {detail}, {error: "..."} and {error: {message}}.
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	for _, key := range []string{"message", "detail"} {
		if raw, ok := parsed[key]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}

	if raw, ok := parsed["error"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &nested) == nil {
			return nested.Message
		}
	}

	return ""
}
