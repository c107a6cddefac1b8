// Package session holds the authentication state of each browser context.
//
// A Controller is the only thing that changes a context's session. It
// starts in StateInitializing, settles into StateAnonymous or
// StateAuthenticated once startup restoration finishes, and moves between
// the two on login and logout.
package session

import (
	"context"
	"fmt"
	"time"

	"command-center/internal/apiclient"
	"command-center/internal/model"
)

type State int

const (
	StateInitializing State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "initializing":
		*s = StateInitializing
	case "anonymous":
		*s = StateAnonymous
	case "authenticated":
		*s = StateAuthenticated
	default:
		return fmt.Errorf("unknown session state %q", text)
	}
	return nil
}

// Session is a point-in-time copy of a controller's state.
type Session struct {
	State           State              `json:"state"`
	User            *model.UserProfile `json:"user"`
	IsAuthenticated bool               `json:"isAuthenticated"`
	Loading         bool               `json:"loading"`
}

func (s Session) Role() string {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

type LoginInput struct {
	Email    string
	Password string
	Remember bool
	Device   string
}

// API is the backend surface the controller drives. apiclient.Client
// implements it.
type API interface {
	Login(ctx context.Context, email string, password string, device string) (apiclient.LoginResult, error)
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*model.UserProfile, error)
}

// TokenStore is the part of tokenstore.Store the controller uses.
type TokenStore interface {
	SetAccessToken(ctx context.Context, token string, remember bool)
	SetRefreshToken(ctx context.Context, token string)
	RefreshToken(ctx context.Context) string
	ClearTokens(ctx context.Context)
	SaveLastEmail(ctx context.Context, email string)
	Touch(ctx context.Context, at time.Time)
	LastActive(ctx context.Context) time.Time
	ClearLastActive(ctx context.Context)
}

func initializing() Session {
	return Session{State: StateInitializing, Loading: true}
}

func anonymous() Session {
	return Session{State: StateAnonymous}
}

func authenticated(user *model.UserProfile) Session {
	return Session{State: StateAuthenticated, User: user, IsAuthenticated: true}
}
