package guard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"command-center/internal/event"
	"command-center/internal/metrics"
	"command-center/internal/middleware"
	"command-center/internal/model"
	"command-center/internal/session"
)

const defaultWaitTimeout = 3 * time.Second

type contextKey string

const sessionContextKey contextKey = "guarded_session"

// Sessions hands out the per-context session entries. session.Manager
// implements it.
type Sessions interface {
	Get(contextID string) (*session.Entry, error)
}

type Options struct {
	// WaitTimeout bounds how long a request waits for startup restoration.
	WaitTimeout time.Duration
	// IdleTimeout logs out sessions inactive for longer. Zero disables it.
	IdleTimeout time.Duration
	// Bus receives session.expired when the guard ends an idle session.
	Bus         event.Bus
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Now         func() time.Time
}

type Middleware struct {
	sessions    Sessions
	waitTimeout time.Duration
	idleTimeout time.Duration
	bus         event.Bus
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewMiddleware(sessions Sessions, opts Options) *Middleware {
	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Middleware{
		sessions:    sessions,
		waitTimeout: waitTimeout,
		idleTimeout: opts.IdleTimeout,
		bus:         opts.Bus,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "guard"),
		now:         now,
	}
}

// Require admits authenticated contexts whose role is one of roles. With no
// roles any authenticated context is admitted.
func (m *Middleware) Require(roles ...string) func(http.Handler) http.Handler {
	allowed := append([]string(nil), roles...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			target := Target{Path: requestedPath(r), AllowedRoles: allowed}

			contextID, ok := middleware.ContextIDFrom(ctx)
			if !ok {
				m.render(w, r, Decision{Kind: RedirectLogin, From: target.Path})
				return
			}

			entry, err := m.sessions.Get(contextID)
			if err != nil {
				m.logger.Error("session lookup failed", "context_id", contextID, "error", err)
				m.render(w, r, Decision{Kind: Wait})
				return
			}
			controller := entry.Controller

			m.waitReady(ctx, controller)

			decision := Decide(m.state(ctx, controller, false), target)
			if decision.Kind == Restore {
				controller.Restore(ctx)
				decision = Decide(m.state(ctx, controller, true), target)
			}
			m.metrics.ObserveGuard(decision.Kind.String())

			switch decision.Kind {
			case Allow:
				controller.Touch(ctx)
				next.ServeHTTP(w, r.WithContext(WithSession(ctx, controller.Session())))
			case Expire:
				controller.Expire(ctx)
				if m.bus != nil {
					m.bus.Publish(event.New(event.TypeSessionExpired, contextID, controller.Session()))
				}
				m.render(w, r, decision)
			default:
				m.render(w, r, decision)
			}
		})
	}
}

func (m *Middleware) waitReady(ctx context.Context, controller *session.Controller) {
	timer := time.NewTimer(m.waitTimeout)
	defer timer.Stop()

	select {
	case <-controller.Ready():
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (m *Middleware) state(ctx context.Context, controller *session.Controller, restoreAttempted bool) State {
	current := controller.Session()
	return State{
		Loading:          current.Loading,
		Authenticated:    current.IsAuthenticated,
		Role:             current.Role(),
		RestoreAttempted: restoreAttempted,
		LastActive:       controller.LastActive(ctx),
		Now:              m.now(),
		IdleTimeout:      m.idleTimeout,
	}
}

// render turns a non-allow decision into a response. Page routes get a
// 303 to the destination; API routes get a status code with the
// destination in meta.redirect.
func (m *Middleware) render(w http.ResponseWriter, r *http.Request, decision Decision) {
	if decision.Kind == Wait {
		w.Header().Set("Retry-After", "1")
		writeEnvelope(w, http.StatusServiceUnavailable, "SESSION_LOADING", "Session is still loading", "")
		return
	}

	status, code, message := http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"
	switch decision.Kind {
	case Expire:
		code, message = "SESSION_EXPIRED", "Session expired after inactivity"
	case Forbidden:
		status, code, message = http.StatusForbidden, "FORBIDDEN", "Access denied"
	}

	redirect := decision.Redirect()
	if !isAPIPath(r.URL.Path) {
		w.Header().Set("Location", redirect)
		status = http.StatusSeeOther
	}
	writeEnvelope(w, status, code, message, redirect)
}

func writeEnvelope(w http.ResponseWriter, status int, code string, message string, redirect string) {
	response := model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: code, Message: message},
	}
	if redirect != "" {
		response.Meta = &model.Meta{Redirect: redirect}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func requestedPath(r *http.Request) string {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	return path
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

func WithSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFrom returns the session the guard admitted the request with.
func SessionFrom(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(session.Session)
	return s, ok
}
