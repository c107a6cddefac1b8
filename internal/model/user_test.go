package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserProfileUnmarshal(t *testing.T) {
	t.Parallel()

	t.Run("snake case with string id", func(t *testing.T) {
		var u UserProfile
		require.NoError(t, json.Unmarshal([]byte(`{"id":"1","email":"a@b.c","full_name":"Ada","role":"hr"}`), &u))
		require.Equal(t, UserProfile{ID: "1", Email: "a@b.c", FullName: "Ada", Role: "hr"}, u)
	})

	t.Run("camel case with numeric id", func(t *testing.T) {
		var u UserProfile
		require.NoError(t, json.Unmarshal([]byte(`{"id":42,"email":"a@b.c","fullName":"Ada","roleName":"team_lead"}`), &u))
		require.Equal(t, "42", u.ID)
		require.Equal(t, "Ada", u.FullName)
		require.Equal(t, "team_lead", u.Role)
	})
}

func TestUserProfileHasRole(t *testing.T) {
	t.Parallel()

	u := &UserProfile{Role: " HR "}
	require.True(t, u.HasRole("hr"))
	require.True(t, u.HasRole("employee", "Hr"))
	require.False(t, u.HasRole("employee"))

	var missing *UserProfile
	require.False(t, missing.HasRole("hr"))
}

func TestLoginRequestRememberDefaultsTrue(t *testing.T) {
	t.Parallel()

	require.True(t, LoginRequest{}.RememberDevice())
	off := false
	require.False(t, LoginRequest{Remember: &off}.RememberDevice())
}
