package handler

import (
	"net/http"
	"time"

	"command-center/internal/guard"
	"command-center/internal/model"
	"command-center/internal/navigation"
	"command-center/internal/websocket"
)

type SessionHandler struct {
	sessions    Sessions
	hub         *websocket.Hub
	waitTimeout time.Duration
	origins     []string
}

func NewSessionHandler(sessions Sessions, hub *websocket.Hub, waitTimeout time.Duration, origins []string) *SessionHandler {
	if waitTimeout <= 0 {
		waitTimeout = 3 * time.Second
	}
	return &SessionHandler{sessions: sessions, hub: hub, waitTimeout: waitTimeout, origins: origins}
}

// Session reports the context's session, waiting briefly for startup
// restoration so callers rarely see the loading state.
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	entry, err := entryFor(h.sessions, r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, settled(r.Context(), entry.Controller, h.waitTimeout), nil)
}

func (h *SessionHandler) Navigation(w http.ResponseWriter, r *http.Request) {
	current, ok := guard.SessionFrom(r.Context())
	if !ok {
		writeError(w, model.ErrNotAuthenticated)
		return
	}

	writeSuccess(w, http.StatusOK, navigation.For(current.Role()), nil)
}

func (h *SessionHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	entry, err := entryFor(h.sessions, r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.Preferences{
		SidebarCollapsed: entry.Tokens.SidebarCollapsed(r.Context()),
	}, nil)
}

func (h *SessionHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var payload model.PreferencesRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.SidebarCollapsed == nil {
		writeError(w, model.ErrInvalidInput)
		return
	}

	entry, err := entryFor(h.sessions, r)
	if err != nil {
		writeError(w, err)
		return
	}

	entry.Tokens.SetSidebarCollapsed(r.Context(), *payload.SidebarCollapsed)
	writeSuccess(w, http.StatusOK, model.Preferences{SidebarCollapsed: *payload.SidebarCollapsed}, nil)
}
