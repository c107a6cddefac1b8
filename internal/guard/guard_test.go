package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecideWaitsWhileLoading(t *testing.T) {
	d := Decide(State{Loading: true}, Target{Path: "/employees", AllowedRoles: []string{"hr"}})
	assert.Equal(t, Wait, d.Kind)
	assert.Empty(t, d.Redirect())
}

func TestDecideAnonymousRestoresThenRedirects(t *testing.T) {
	target := Target{Path: "/employees", AllowedRoles: []string{"hr"}}

	first := Decide(State{}, target)
	assert.Equal(t, Restore, first.Kind)

	second := Decide(State{RestoreAttempted: true}, target)
	assert.Equal(t, RedirectLogin, second.Kind)
	assert.Equal(t, "/employees", second.From)
	assert.Equal(t, "/login?from=%2Femployees", second.Redirect())
}

func TestDecideRoleMismatchIsForbidden(t *testing.T) {
	d := Decide(State{Authenticated: true, Role: "employee"}, Target{Path: "/employees", AllowedRoles: []string{"HR"}})
	assert.Equal(t, Forbidden, d.Kind)
	assert.Equal(t, "/forbidden", d.Redirect())
}

func TestDecideRoleComparisonIgnoresCaseAndSpace(t *testing.T) {
	d := Decide(State{Authenticated: true, Role: " HR "}, Target{Path: "/employees", AllowedRoles: []string{"hr"}})
	assert.Equal(t, Allow, d.Kind)
}

func TestDecideNoRolesAdmitsAnyAuthenticated(t *testing.T) {
	d := Decide(State{Authenticated: true}, Target{Path: "/"})
	assert.Equal(t, Allow, d.Kind)

	d = Decide(State{Authenticated: true}, Target{Path: "/", AllowedRoles: []string{"hr"}})
	assert.Equal(t, Forbidden, d.Kind)
}

func TestDecideIdleExpiry(t *testing.T) {
	now := time.Now()
	state := State{
		Authenticated: true,
		Role:          "hr",
		Now:           now,
		IdleTimeout:   20 * time.Minute,
	}
	target := Target{Path: "/attendance"}

	state.LastActive = now.Add(-21 * time.Minute)
	d := Decide(state, target)
	assert.Equal(t, Expire, d.Kind)
	assert.Equal(t, "/login?from=%2Fattendance", d.Redirect())

	state.LastActive = now.Add(-19 * time.Minute)
	assert.Equal(t, Allow, Decide(state, target).Kind)

	state.LastActive = time.Time{}
	assert.Equal(t, Allow, Decide(state, target).Kind)

	state.LastActive = now.Add(-time.Hour)
	state.IdleTimeout = 0
	assert.Equal(t, Allow, Decide(state, target).Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "redirect_login", RedirectLogin.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
