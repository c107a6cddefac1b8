// Package apiclient talks to the company-management backend on behalf of
// one browser context.
//
// Every request carries the context's bearer token. A 401 triggers at most
// one refresh at a time; requests that fail while it runs wait for it and
// are retried once with the token it produced.
package apiclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"command-center/internal/metrics"
)

const (
	LoginPath   = "/api/auth/login"
	RefreshPath = "/api/auth/refresh"
	LogoutPath  = "/api/auth/logout"
	MePath      = "/api/auth/me"

	defaultTimeout = 15 * time.Second
	refreshKey     = "refresh"
)

// TokenStore is the part of tokenstore.Store the client reads and writes.
type TokenStore interface {
	AccessToken(ctx context.Context) string
	SetAccessToken(ctx context.Context, token string, remember bool)
	Remembered(ctx context.Context) bool
	RefreshToken(ctx context.Context) string
	SetRefreshToken(ctx context.Context, token string)
	ClearTokens(ctx context.Context)
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// Base is the transport requests finally go out on. Defaults to
	// http.DefaultTransport.
	Base    http.RoundTripper
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Client struct {
	tokens  TokenStore
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger

	transport *Transport
	http      *http.Client
	api       *resty.Client
	raw       *resty.Client

	// mu guards generation, which counts finished refreshes. Joining a
	// flight and checking the generation happen under mu together.
	mu         sync.Mutex
	generation uint64
	refreshes  singleflight.Group
}

func New(tokens TokenStore, opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		tokens:  tokens,
		timeout: timeout,
		metrics: opts.Metrics,
		logger:  logger.With("component", "apiclient"),
	}

	c.transport = &Transport{client: c, base: base}
	c.http = &http.Client{Transport: c.transport, Timeout: timeout}
	c.api = resty.NewWithClient(c.http).
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	// The refresh call itself goes out on the bare transport so a 401 from
	// it is final.
	c.raw = resty.NewWithClient(&http.Client{Transport: base, Timeout: timeout}).
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return c, nil
}

// HTTPClient returns the refreshing client, for callers that build their
// own requests against the backend.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Transport returns the refreshing round tripper.
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

func (c *Client) refreshGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// refreshAfter joins the in-flight refresh or starts one, unless a refresh
// has finished since generation seen; then the token it left is used. All
// callers that join the same flight get the same token or the same error.
func (c *Client) refreshAfter(ctx context.Context, seen uint64) (string, error) {
	c.mu.Lock()
	if c.generation != seen {
		c.mu.Unlock()
		if token := c.tokens.AccessToken(ctx); token != "" {
			return token, nil
		}
		return "", ErrSessionExpired
	}

	flight := c.refreshes.DoChan(refreshKey, func() (any, error) {
		token, err := c.doRefresh(context.WithoutCancel(ctx))

		c.mu.Lock()
		c.refreshes.Forget(refreshKey)
		c.generation++
		c.mu.Unlock()

		return token, err
	})
	c.mu.Unlock()

	result := <-flight
	if result.Shared {
		c.logger.Debug("joined in-flight token refresh")
	}
	if result.Err != nil {
		return "", result.Err
	}
	return result.Val.(string), nil
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	refreshToken := c.tokens.RefreshToken(ctx)
	if refreshToken == "" {
		c.tokens.ClearTokens(ctx)
		c.metrics.ObserveRefresh("skipped")
		return "", ErrNoRefreshToken
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("refreshing access token")

	var out tokenResponse
	resp, err := c.raw.R().
		SetContext(reqCtx).
		SetBody(map[string]string{"refreshToken": refreshToken}).
		SetResult(&out).
		Post(RefreshPath)
	if err == nil && resp.IsError() {
		err = newStatusError(resp.StatusCode(), resp.Body())
	}
	if err == nil && out.token() == "" {
		err = ErrNoAccessToken
	}
	if err != nil {
		c.tokens.ClearTokens(ctx)
		c.metrics.ObserveRefresh("failure")
		if IsStatus(err, http.StatusUnauthorized) {
			c.logger.Debug("refresh rejected, treating context as anonymous")
		} else {
			c.logger.Warn("token refresh failed", "error", err)
		}
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	remember := c.tokens.Remembered(ctx)
	c.tokens.SetAccessToken(ctx, out.token(), remember)
	c.tokens.SetRefreshToken(ctx, out.RefreshToken)
	c.metrics.ObserveRefresh("success")

	if exp, ok := TokenExpiry(out.token()); ok {
		c.logger.Debug("access token refreshed", "expires_at", exp)
	}

	return out.token(), nil
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	Access       string `json:"access"`
	RefreshToken string `json:"refreshToken"`
}

func (r tokenResponse) token() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Access
}
