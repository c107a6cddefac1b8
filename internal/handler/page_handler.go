package handler

import (
	"net/http"

	"command-center/internal/guard"
	"command-center/internal/model"
	"command-center/internal/navigation"
)

type PageHandler struct {
	sessions Sessions
}

func NewPageHandler(sessions Sessions) *PageHandler {
	return &PageHandler{sessions: sessions}
}

// Page renders the descriptor for a dashboard page. The route guard has
// already admitted the request.
func (h *PageHandler) Page(item navigation.Item) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := guard.SessionFrom(r.Context())
		if !ok {
			writeError(w, model.ErrNotAuthenticated)
			return
		}

		entry, err := entryFor(h.sessions, r)
		if err != nil {
			writeError(w, err)
			return
		}

		nav := navigation.For(current.Role())
		writeSuccess(w, http.StatusOK, model.Page{
			Key:              item.Key,
			Title:            item.Label,
			Path:             item.Path,
			User:             current.User,
			Navigation:       &nav,
			SidebarCollapsed: entry.Tokens.SidebarCollapsed(r.Context()),
		}, nil)
	}
}
