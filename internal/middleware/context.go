package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const contextIDKey contextKey = "browser_context_id"

const DefaultContextCookie = "cc_ctx"

// ContextCookie assigns every browser an opaque context ID and keeps it in
// a cookie. Everything the gateway stores for a browser is keyed by it.
type ContextCookie struct {
	name   string
	secure bool
	maxAge time.Duration
}

func NewContextCookie(name string, secure bool, maxAge time.Duration) *ContextCookie {
	if strings.TrimSpace(name) == "" {
		name = DefaultContextCookie
	}
	return &ContextCookie{name: name, secure: secure, maxAge: maxAge}
}

func (m *ContextCookie) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if cookie, err := r.Cookie(m.name); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed.String()
			}
		}

		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, m.cookie(id))
		}

		next.ServeHTTP(w, r.WithContext(WithContextID(r.Context(), id)))
	})
}

func (m *ContextCookie) cookie(id string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     m.name,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.maxAge > 0 {
		cookie.MaxAge = int(m.maxAge.Seconds())
		cookie.Expires = time.Now().Add(m.maxAge)
	}
	return cookie
}

func WithContextID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextIDKey, id)
}

func ContextIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextIDKey).(string)
	return id, ok && id != ""
}
