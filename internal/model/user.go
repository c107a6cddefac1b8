package model

import (
	"encoding/json"
	"strings"
)

type UserProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// UnmarshalJSON accepts both the snake_case and camelCase profile shapes
// the backend has served over time (full_name/fullName, role/roleName).
func (u *UserProfile) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		Email     string          `json:"email"`
		FullName  string          `json:"full_name"`
		FullName2 string          `json:"fullName"`
		Role      string          `json:"role"`
		RoleName  string          `json:"roleName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	u.ID = rawID(raw.ID)
	u.Email = raw.Email
	u.FullName = firstNonEmpty(raw.FullName, raw.FullName2)
	u.Role = firstNonEmpty(raw.Role, raw.RoleName)
	return nil
}

// HasRole compares case-insensitively, ignoring surrounding space.
func (u *UserProfile) HasRole(roles ...string) bool {
	if u == nil {
		return false
	}
	own := strings.ToLower(strings.TrimSpace(u.Role))
	for _, role := range roles {
		if strings.ToLower(strings.TrimSpace(role)) == own {
			return true
		}
	}
	return false
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember *bool  `json:"remember,omitempty"`
	Device   string `json:"device,omitempty"`
}

// RememberDevice defaults to true when the client does not say otherwise.
func (r LoginRequest) RememberDevice() bool {
	if r.Remember == nil {
		return true
	}
	return *r.Remember
}

type PreferencesRequest struct {
	SidebarCollapsed *bool `json:"sidebar_collapsed"`
}

type Preferences struct {
	SidebarCollapsed bool `json:"sidebar_collapsed"`
}

// rawID tolerates numeric and string identifiers.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
