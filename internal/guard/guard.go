// Package guard decides whether a browser context may see a dashboard
// route.
package guard

import (
	"net/url"
	"strings"
	"time"
)

const (
	LoginPath     = "/login"
	ForbiddenPath = "/forbidden"
)

type Kind int

const (
	// Wait means the session has not settled yet.
	Wait Kind = iota
	// Restore asks for one silent session restoration before deciding.
	Restore
	RedirectLogin
	// Expire means an authenticated session sat idle past the timeout.
	Expire
	Forbidden
	Allow
)

func (k Kind) String() string {
	switch k {
	case Wait:
		return "wait"
	case Restore:
		return "restore"
	case RedirectLogin:
		return "redirect_login"
	case Expire:
		return "expire"
	case Forbidden:
		return "forbidden"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// State is what the guard knows about the browser context.
type State struct {
	Loading          bool
	Authenticated    bool
	Role             string
	RestoreAttempted bool

	LastActive  time.Time
	Now         time.Time
	IdleTimeout time.Duration
}

type Target struct {
	Path string
	// AllowedRoles empty means any authenticated user.
	AllowedRoles []string
}

type Decision struct {
	Kind Kind
	// From is the requested path, set when the decision sends the user
	// to the login page.
	From string
}

// Redirect returns where the decision sends the browser, or "" when it
// does not redirect.
func (d Decision) Redirect() string {
	switch d.Kind {
	case RedirectLogin, Expire:
		if d.From == "" {
			return LoginPath
		}
		return LoginPath + "?from=" + url.QueryEscape(d.From)
	case Forbidden:
		return ForbiddenPath
	default:
		return ""
	}
}

func Decide(state State, target Target) Decision {
	if state.Loading {
		return Decision{Kind: Wait}
	}

	if !state.Authenticated {
		if !state.RestoreAttempted {
			return Decision{Kind: Restore}
		}
		return Decision{Kind: RedirectLogin, From: target.Path}
	}

	if state.IdleTimeout > 0 && !state.LastActive.IsZero() && state.Now.Sub(state.LastActive) > state.IdleTimeout {
		return Decision{Kind: Expire, From: target.Path}
	}

	if len(target.AllowedRoles) > 0 && !roleAllowed(state.Role, target.AllowedRoles) {
		return Decision{Kind: Forbidden}
	}

	return Decision{Kind: Allow}
}

func roleAllowed(role string, allowed []string) bool {
	own := strings.ToLower(strings.TrimSpace(role))
	if own == "" {
		return false
	}
	for _, candidate := range allowed {
		if strings.ToLower(strings.TrimSpace(candidate)) == own {
			return true
		}
	}
	return false
}
