package mockapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"command-center/internal/middleware"
	"command-center/internal/model"
	"command-center/pkg/apierror"
)

type Handler struct {
	service *Service

	mu    sync.Mutex
	calls map[string]int
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, calls: map[string]int{}}
}

// Routes mounts the backend endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(h.count)

	r.Post("/api/auth/login", h.Login)
	r.Post("/api/auth/refresh", h.Refresh)
	r.Post("/api/auth/logout", h.Logout)
	r.Get("/api/auth/me", h.Me)
	r.Get("/api/employees", h.Employees)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// Calls reports how many requests reached path.
func (h *Handler) Calls(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[path]
}

func (h *Handler) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.calls[r.URL.Path]++
		h.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Device   string `json:"device"`
}

type loginResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         model.UserProfile `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	tokens, profile, err := h.service.Login(payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Debug("mock login", "email", profile.Email, "device", payload.Device)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         profile,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	payload.RefreshToken = strings.TrimSpace(payload.RefreshToken)
	if payload.RefreshToken == "" {
		writeError(w, apierror.New("UNAUTHORIZED", "refreshToken is required", "refreshToken", http.StatusUnauthorized))
		return
	}

	tokens, err := h.service.Refresh(payload.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken := strings.TrimSpace(r.URL.Query().Get("refreshToken")); refreshToken != "" {
		h.service.Logout(refreshToken)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": profile})
}

type employee struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	Position   string `json:"position"`
}

var sampleEmployees = []employee{
	{ID: "E-001", FullName: "Hanna Reyes", Department: "People", Position: "HR Manager"},
	{ID: "E-002", FullName: "Lee Turner", Department: "Engineering", Position: "Team Lead"},
	{ID: "E-003", FullName: "Eli Moss", Department: "Engineering", Position: "Backend Developer"},
}

func (h *Handler) Employees(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authenticate(r); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": sampleEmployees, "count": len(sampleEmployees)})
}

func (h *Handler) authenticate(r *http.Request) (model.UserProfile, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return model.UserProfile{}, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized)
	}

	token := strings.TrimSpace(header[len("bearer "):])
	if token == "" {
		return model.UserProfile{}, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized)
	}
	return h.service.Authenticate(token)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierror.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("mock backend error", "error", err)
		apiErr = apierror.New("INTERNAL_ERROR", "Unexpected server error", "", http.StatusInternalServerError)
	}

	writeJSON(w, apiErr.HTTPStatus, map[string]any{"error": apiErr})
}
