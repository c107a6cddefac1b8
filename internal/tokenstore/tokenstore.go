// Package tokenstore keeps the tokens and session metadata of one browser
// context across two storage scopes.
//
// The ephemeral scope stands in for per-tab storage and the durable scope
// for per-device storage. Reads of the access token prefer the ephemeral
// scope. Storage failures are logged at debug level and never surface:
// a broken backend reads as "nothing stored".
package tokenstore

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"command-center/internal/storage"
)

const (
	KeyAccessToken      = "accessToken"
	KeyRefreshToken     = "refreshToken"
	KeyLastEmail        = "lastLoginEmail"
	KeyLastActive       = "lastActiveAt"
	KeySidebarCollapsed = "sidebarCollapsed"
)

type Store struct {
	namespace string
	durable   storage.Backend
	ephemeral storage.Backend
	logger    *slog.Logger
}

func New(namespace string, durable storage.Backend, ephemeral storage.Backend) *Store {
	return &Store{
		namespace: namespace,
		durable:   durable,
		ephemeral: ephemeral,
		logger:    slog.Default().With("component", "tokenstore"),
	}
}

func (s *Store) Namespace() string {
	return s.namespace
}

// SetAccessToken writes the token to the durable scope when remember is
// set, otherwise to the ephemeral scope, and drops any copy in the other.
func (s *Store) SetAccessToken(ctx context.Context, token string, remember bool) {
	target, other := s.ephemeral, s.durable
	if remember {
		target, other = s.durable, s.ephemeral
	}

	s.set(ctx, target, KeyAccessToken, token)
	s.remove(ctx, other, KeyAccessToken)
}

func (s *Store) AccessToken(ctx context.Context) string {
	if token, ok := s.get(ctx, s.ephemeral, KeyAccessToken); ok {
		return token
	}
	token, _ := s.get(ctx, s.durable, KeyAccessToken)
	return token
}

// Remembered reports whether the authoritative access token is the
// durable one.
func (s *Store) Remembered(ctx context.Context) bool {
	if _, ok := s.get(ctx, s.ephemeral, KeyAccessToken); ok {
		return false
	}
	_, ok := s.get(ctx, s.durable, KeyAccessToken)
	return ok
}

// SetRefreshToken ignores empty tokens so a response without a rotated
// token keeps the current one.
func (s *Store) SetRefreshToken(ctx context.Context, token string) {
	if token == "" {
		return
	}
	s.set(ctx, s.durable, KeyRefreshToken, token)
}

func (s *Store) RefreshToken(ctx context.Context) string {
	token, _ := s.get(ctx, s.durable, KeyRefreshToken)
	return token
}

// ClearTokens removes the access token from both scopes and the refresh
// token. Each removal runs even if an earlier one failed.
func (s *Store) ClearTokens(ctx context.Context) {
	s.remove(ctx, s.ephemeral, KeyAccessToken)
	s.remove(ctx, s.durable, KeyAccessToken)
	s.remove(ctx, s.durable, KeyRefreshToken)
}

func (s *Store) SaveLastEmail(ctx context.Context, email string) {
	s.set(ctx, s.durable, KeyLastEmail, email)
}

func (s *Store) LastEmail(ctx context.Context) string {
	email, _ := s.get(ctx, s.durable, KeyLastEmail)
	return email
}

func (s *Store) Touch(ctx context.Context, at time.Time) {
	s.set(ctx, s.durable, KeyLastActive, strconv.FormatInt(at.UnixMilli(), 10))
}

// LastActive returns the zero time when nothing (or garbage) is stored.
func (s *Store) LastActive(ctx context.Context) time.Time {
	raw, ok := s.get(ctx, s.durable, KeyLastActive)
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *Store) ClearLastActive(ctx context.Context) {
	s.remove(ctx, s.durable, KeyLastActive)
}

func (s *Store) SetSidebarCollapsed(ctx context.Context, collapsed bool) {
	s.set(ctx, s.durable, KeySidebarCollapsed, strconv.FormatBool(collapsed))
}

func (s *Store) SidebarCollapsed(ctx context.Context) bool {
	raw, ok := s.get(ctx, s.durable, KeySidebarCollapsed)
	return ok && raw == "true"
}

func (s *Store) get(ctx context.Context, backend storage.Backend, key string) (string, bool) {
	if backend == nil {
		return "", false
	}
	value, ok, err := backend.Get(ctx, s.namespace, key)
	if err != nil {
		s.logger.Debug("storage read failed", "key", key, "error", err)
		return "", false
	}
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func (s *Store) set(ctx context.Context, backend storage.Backend, key string, value string) {
	if backend == nil {
		return
	}
	if err := backend.Set(ctx, s.namespace, key, value); err != nil {
		s.logger.Debug("storage write failed", "key", key, "error", err)
	}
}

func (s *Store) remove(ctx context.Context, backend storage.Backend, key string) {
	if backend == nil {
		return
	}
	if err := backend.Delete(ctx, s.namespace, key); err != nil {
		s.logger.Debug("storage delete failed", "key", key, "error", err)
	}
}
