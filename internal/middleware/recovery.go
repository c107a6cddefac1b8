package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"command-center/internal/model"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			// Let the server abort the connection as it would without us.
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			slog.Error("panic recovered",
				"error", fmt.Sprintf("%v", recovered),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", w.Header().Get(requestIDHeader),
				"stack", string(debug.Stack()),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(model.APIResponse{
				Success: false,
				Error: &model.APIError{
					Code:    "INTERNAL_ERROR",
					Message: "Unexpected server error",
				},
			})
		}()

		next.ServeHTTP(w, r)
	})
}
