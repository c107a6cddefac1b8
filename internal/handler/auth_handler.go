package handler

import (
	"net/http"
	"strings"
	"time"

	"command-center/internal/event"
	"command-center/internal/guard"
	"command-center/internal/model"
	"command-center/internal/session"
	"command-center/pkg/apierror"
)

type AuthHandler struct {
	sessions    Sessions
	bus         event.Bus
	waitTimeout time.Duration
}

func NewAuthHandler(sessions Sessions, bus event.Bus, waitTimeout time.Duration) *AuthHandler {
	if waitTimeout <= 0 {
		waitTimeout = 3 * time.Second
	}
	return &AuthHandler{sessions: sessions, bus: bus, waitTimeout: waitTimeout}
}

// LoginPage describes the login screen. An already authenticated context
// is pointed back to where it came from.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	entry, err := entryFor(h.sessions, r)
	if err != nil {
		writeError(w, err)
		return
	}

	from := safeRedirect(r.URL.Query().Get("from"))
	current := settled(r.Context(), entry.Controller, h.waitTimeout)

	var meta *model.Meta
	if current.IsAuthenticated {
		meta = &model.Meta{Redirect: from}
	}

	writeSuccess(w, http.StatusOK, model.LoginPage{
		LastEmail: entry.Tokens.LastEmail(r.Context()),
		From:      from,
	}, meta)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" || payload.Password == "" {
		writeError(w, apierror.New("BAD_REQUEST", "email and password are required", "", http.StatusBadRequest))
		return
	}

	entry, err := entryFor(h.sessions, r)
	if err != nil {
		writeError(w, err)
		return
	}

	device := strings.TrimSpace(payload.Device)
	if device == "" {
		device = r.UserAgent()
	}

	current, err := entry.Controller.Login(r.Context(), session.LoginInput{
		Email:    payload.Email,
		Password: payload.Password,
		Remember: payload.RememberDevice(),
		Device:   device,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(event.TypeLoggedIn, entry.ID, current)
	writeSuccess(w, http.StatusOK, current, &model.Meta{Redirect: safeRedirect(r.URL.Query().Get("from"))})
}

// Logout always succeeds locally, whatever the backend said.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	entry, err := entryFor(h.sessions, r)
	if err != nil {
		writeError(w, err)
		return
	}

	entry.Controller.Logout(r.Context())
	h.publish(event.TypeLoggedOut, entry.ID, entry.Controller.Session())

	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true}, &model.Meta{Redirect: guard.LoginPath})
}

func (h *AuthHandler) Forbidden(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, model.Page{
		Key:   "forbidden",
		Title: "Access denied",
		Path:  guard.ForbiddenPath,
	}, nil)
}

func (h *AuthHandler) publish(eventType event.Type, contextID string, payload session.Session) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(event.New(eventType, contextID, payload))
}

// safeRedirect keeps post-login redirects on this site.
func safeRedirect(from string) string {
	from = strings.TrimSpace(from)
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.Contains(from, `\`) {
		return "/"
	}
	if from == guard.LoginPath || strings.HasPrefix(from, guard.LoginPath+"?") {
		return "/"
	}
	return from
}
