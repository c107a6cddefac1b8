package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"command-center/internal/model"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterGCInterval = time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware keeps two budgets. Credential submissions draw from
// a strict per-IP budget so rotating context cookies does not help a
// guesser. Everything else draws from a per-browser-context budget, which
// falls back to the client IP before a context is assigned.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	now        func() time.Time

	mu      sync.Mutex
	general map[string]*bucket
	auth    map[string]*bucket
	lastGC  time.Time
}

func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if generalRPM <= 0 {
		generalRPM = 300
	}
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		now:        time.Now,
		general:    map[string]*bucket{},
		auth:       map[string]*bucket{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		var limiter *rate.Limiter
		if isLoginAttempt(r) {
			limiter = m.limiter(m.auth, extractClientIP(r), m.authRPM)
		} else {
			key, ok := ContextIDFrom(r.Context())
			if !ok {
				key = "ip:" + extractClientIP(r)
			}
			limiter = m.limiter(m.general, key, m.generalRPM)
		}

		reservation := limiter.ReserveN(m.now(), 1)
		if delay := reservation.DelayFrom(m.now()); delay > 0 {
			reservation.CancelAt(m.now())
			writeRateLimited(w, delay)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) limiter(buckets map[string]*bucket, key string, rpm int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.gcLocked(now)

	if b, ok := buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}

	b := &bucket{
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		lastSeen: now,
	}
	buckets[key] = b
	return b.limiter
}

func (m *RateLimitMiddleware) gcLocked(now time.Time) {
	if now.Sub(m.lastGC) < limiterGCInterval {
		return
	}
	m.lastGC = now

	cutoff := now.Add(-limiterIdleTTL)
	for _, buckets := range []map[string]*bucket{m.general, m.auth} {
		for key, b := range buckets {
			if b.lastSeen.Before(cutoff) {
				delete(buckets, key)
			}
		}
	}
}

func writeRateLimited(w http.ResponseWriter, delay time.Duration) {
	seconds := int(math.Ceil(delay.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "RATE_LIMITED",
			Message: "Too many requests",
		},
	})
}

// exempt covers probes that must never be throttled.
func exempt(path string) bool {
	switch strings.ToLower(strings.TrimRight(path, "/")) {
	case "/health", "/metrics":
		return true
	}
	return false
}

func isLoginAttempt(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.EqualFold(strings.TrimRight(r.URL.Path, "/"), "/login")
}

func extractClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
