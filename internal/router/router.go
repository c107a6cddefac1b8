package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"command-center/internal/config"
	"command-center/internal/guard"
	"command-center/internal/handler"
	"command-center/internal/metrics"
	"command-center/internal/middleware"
	"command-center/internal/navigation"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	Page    *handler.PageHandler
	Proxy   *handler.ProxyHandler
	Health  *handler.HealthHandler
}

func New(cfg *config.Config, guardMiddleware *guard.Middleware, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)
	contextCookie := middleware.NewContextCookie(cfg.ContextCookieName, cfg.CookieSecure, cfg.EphemeralTTL)

	r.Use(middleware.Recovery)
	r.Use(contextCookie.Handler)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	requireSession := guardMiddleware.Require()

	// The websocket outlives any request timeout.
	r.Get("/api/session/events", h.Session.Events)

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Get("/login", h.Auth.LoginPage)
		api.Post("/login", h.Auth.Login)
		api.Post("/logout", h.Auth.Logout)
		api.Get(guard.ForbiddenPath, h.Auth.Forbidden)

		api.Get("/api/session", h.Session.Session)
		api.With(requireSession).Get("/api/navigation", h.Session.Navigation)
		api.With(requireSession).Get("/api/preferences", h.Session.Preferences)
		api.With(requireSession).Put("/api/preferences", h.Session.UpdatePreferences)

		api.With(requireSession).Handle(handler.ProxyPrefix+"/*", h.Proxy)

		for _, item := range navigation.Items() {
			api.With(guardMiddleware.Require(item.Roles...)).Get(item.Path, h.Page.Page(item))
		}
	})

	return r
}
