package handler

import (
	"encoding/json"
	"net/http"
	"net/url"

	"command-center/internal/event"
	"command-center/internal/websocket"
)

// Events streams the context's session changes over a websocket. The
// first frame is the current session.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	entry, err := entryFor(h.sessions, r)
	if err != nil {
		writeError(w, err)
		return
	}

	initial, err := json.Marshal(event.New(event.TypeSessionChanged, entry.ID, entry.Controller.Session()))
	if err != nil {
		writeError(w, err)
		return
	}

	h.hub.Serve(w, r, entry.ID, initial, websocketOptions(h.origins))
}

// websocketOptions turns CORS origins into the host patterns the websocket
// origin check expects.
func websocketOptions(origins []string) websocket.ServeOptions {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			patterns = append(patterns, "*")
			continue
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			patterns = append(patterns, parsed.Host)
		}
	}
	return websocket.ServeOptions{OriginPatterns: patterns}
}
