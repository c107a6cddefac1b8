package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"command-center/internal/apiclient"
	"command-center/internal/model"
	"command-center/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorWithMeta(w, err, nil)
}

func writeErrorWithMeta(w http.ResponseWriter, err error, meta *model.Meta) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	var statusErr *apiclient.StatusError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = "INVALID_CREDENTIALS"
		body.Message = "Invalid email or password"
		if errors.As(err, &statusErr) && statusErr.Message != "" {
			body.Details = statusErr.Message
		}
	case errors.Is(err, model.ErrLoginFailed):
		status = http.StatusBadGateway
		body.Code = "LOGIN_FAILED"
		body.Message = "Login failed, please try again"
	case errors.Is(err, model.ErrNotAuthenticated):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	case errors.Is(err, model.ErrSessionExpired), errors.Is(err, apiclient.ErrSessionExpired):
		status = http.StatusUnauthorized
		body.Code = "SESSION_EXPIRED"
		body.Message = "Session expired, please log in again"
	case errors.Is(err, model.ErrBackendUnavailable):
		status = http.StatusBadGateway
		body.Code = "BAD_GATEWAY"
		body.Message = "Backend unavailable"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	default:
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
		Meta:    meta,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return apierror.Wrap(err, "BAD_REQUEST", "invalid JSON body", http.StatusBadRequest)
	}
	return nil
}
