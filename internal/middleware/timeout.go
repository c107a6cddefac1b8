package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"command-center/internal/model"
)

// Timeout bounds a handler with http.TimeoutHandler. The timeout body uses
// the same envelope as every other error.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "REQUEST_TIMEOUT",
			Message: "Request timed out",
		},
	})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(message))
	}
}
