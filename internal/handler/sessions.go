package handler

import (
	"context"
	"net/http"
	"time"

	"command-center/internal/middleware"
	"command-center/internal/model"
	"command-center/internal/session"
)

// Sessions hands out per-context session entries. session.Manager
// implements it.
type Sessions interface {
	Get(contextID string) (*session.Entry, error)
}

func entryFor(sessions Sessions, r *http.Request) (*session.Entry, error) {
	contextID, ok := middleware.ContextIDFrom(r.Context())
	if !ok {
		return nil, model.ErrNotAuthenticated
	}
	return sessions.Get(contextID)
}

// settled waits, up to timeout, for startup restoration to finish.
func settled(ctx context.Context, controller *session.Controller, timeout time.Duration) session.Session {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-controller.Ready():
	case <-timer.C:
	case <-ctx.Done():
	}
	return controller.Session()
}
