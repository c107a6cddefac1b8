package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"command-center/internal/apiclient"
	"command-center/internal/metrics"
	"command-center/internal/model"
)

type Controller struct {
	id      string
	api     API
	tokens  TokenStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	// ops serialises the public operations; mu guards the fields below it.
	ops sync.Mutex

	mu          sync.Mutex
	session     Session
	closed      bool
	subscribers map[int]func(Session)
	nextSub     int

	startOnce sync.Once
	readyOnce sync.Once
	ready     chan struct{}
}

type ControllerOptions struct {
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

func NewController(id string, api API, tokens TokenStore, opts ControllerOptions) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		id:          id,
		api:         api,
		tokens:      tokens,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "session", "context_id", id),
		now:         now,
		session:     initializing(),
		subscribers: map[int]func(Session){},
		ready:       make(chan struct{}),
	}
}

func (c *Controller) ID() string {
	return c.id
}

// Start runs startup restoration once. Without a stored refresh token it
// settles as anonymous without calling the backend.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.ops.Lock()
		defer c.ops.Unlock()
		defer c.markReady()

		if c.tokens.RefreshToken(ctx) == "" {
			c.set(anonymous())
			return
		}

		if _, err := c.api.Refresh(ctx); err != nil {
			c.logger.Debug("startup restoration failed", "error", err)
			c.set(anonymous())
			return
		}

		c.refreshUserLocked(ctx)
	})
}

// Ready is closed once startup restoration has settled or the controller
// was closed.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

func (c *Controller) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// Login authenticates with the backend. On failure the session is
// anonymous and the context holds no tokens, including those of a session
// it had before.
func (c *Controller) Login(ctx context.Context, in LoginInput) (Session, error) {
	// A login settles the context, so startup restoration has nothing left
	// to do.
	c.startOnce.Do(func() {})
	defer c.markReady()

	c.ops.Lock()
	defer c.ops.Unlock()

	result, err := c.api.Login(ctx, in.Email, in.Password, in.Device)
	if err != nil {
		c.tokens.ClearTokens(ctx)
		c.set(anonymous())
		if apiclient.IsStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden) {
			c.metrics.ObserveLogin("rejected")
			return c.Session(), fmt.Errorf("%w: %w", model.ErrInvalidCredentials, err)
		}
		c.metrics.ObserveLogin("error")
		c.logger.Warn("login request failed", "error", err)
		return c.Session(), fmt.Errorf("%w: %w", model.ErrLoginFailed, err)
	}

	if result.AccessToken != "" {
		c.tokens.SetAccessToken(ctx, result.AccessToken, in.Remember)
	}
	c.tokens.SetRefreshToken(ctx, result.RefreshToken)
	if in.Remember {
		c.tokens.SaveLastEmail(ctx, in.Email)
	}
	c.tokens.Touch(ctx, c.now())
	if !result.ExpiresAt.IsZero() {
		c.logger.Debug("access token issued", "expires_at", result.ExpiresAt)
	}

	if result.User != nil {
		c.set(authenticated(result.User))
		c.metrics.ObserveLogin("success")
		return c.Session(), nil
	}

	if !c.refreshUserLocked(ctx) {
		c.tokens.ClearTokens(ctx)
		c.metrics.ObserveLogin("error")
		return c.Session(), fmt.Errorf("%w: profile unavailable after login", model.ErrLoginFailed)
	}

	c.metrics.ObserveLogin("success")
	return c.Session(), nil
}

// Logout revokes the session with the backend on a best-effort basis and
// then always clears the local session.
func (c *Controller) Logout(ctx context.Context) {
	c.ops.Lock()
	defer c.ops.Unlock()

	c.logoutLocked(ctx)
}

func (c *Controller) logoutLocked(ctx context.Context) {
	if err := c.api.Logout(ctx); err != nil {
		c.logger.Debug("backend logout failed", "error", err)
	}

	c.tokens.ClearTokens(ctx)
	c.tokens.ClearLastActive(ctx)
	c.set(anonymous())
}

// Expire ends a session that sat idle too long. It behaves like Logout but
// is reported separately.
func (c *Controller) Expire(ctx context.Context) {
	c.ops.Lock()
	defer c.ops.Unlock()

	c.logger.Info("session expired after inactivity")
	c.logoutLocked(ctx)
}

// Invalidate drops an authenticated session whose refresh the backend
// refused. The client has already cleared the tokens.
func (c *Controller) Invalidate() {
	c.ops.Lock()
	defer c.ops.Unlock()

	if c.Session().IsAuthenticated {
		c.logger.Info("session invalidated after refresh failure")
	}
	c.set(anonymous())
}

// RefreshUser fetches the profile. Failure clears it and reports false.
func (c *Controller) RefreshUser(ctx context.Context) bool {
	c.ops.Lock()
	defer c.ops.Unlock()

	return c.refreshUserLocked(ctx)
}

func (c *Controller) refreshUserLocked(ctx context.Context) bool {
	profile, err := c.api.Me(ctx)
	if err != nil || profile == nil {
		if err != nil && !errors.Is(err, apiclient.ErrSessionExpired) && !apiclient.IsStatus(err, http.StatusUnauthorized) {
			c.logger.Warn("profile fetch failed", "error", err)
		}
		c.set(anonymous())
		return false
	}

	c.set(authenticated(profile))
	return true
}

// Restore is the silent restoration the route guard attempts for an
// anonymous context: refresh, then fetch the profile.
func (c *Controller) Restore(ctx context.Context) bool {
	c.ops.Lock()
	defer c.ops.Unlock()

	if c.Session().IsAuthenticated {
		return true
	}
	if c.tokens.RefreshToken(ctx) == "" {
		return false
	}

	if _, err := c.api.Refresh(ctx); err != nil {
		c.logger.Debug("silent restoration failed", "error", err)
		c.set(anonymous())
		return false
	}
	return c.refreshUserLocked(ctx)
}

// Touch records activity for the idle timeout.
func (c *Controller) Touch(ctx context.Context) {
	c.tokens.Touch(ctx, c.now())
}

func (c *Controller) LastActive(ctx context.Context) time.Time {
	return c.tokens.LastActive(ctx)
}

func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Subscribe registers fn for every state change. fn runs on the goroutine
// that made the change, outside the controller's lock.
func (c *Controller) Subscribe(fn func(Session)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Close detaches the controller. Operations still running finish, but
// their results are dropped and nobody is notified any more.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.subscribers = map[int]func(Session){}
	c.mu.Unlock()

	c.markReady()
}

func (c *Controller) set(next Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	changed := c.session != next
	c.session = next
	subscribers := make([]func(Session), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subscribers = append(subscribers, fn)
	}
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subscribers {
		fn(next)
	}
}
