package model

type NavLink struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

type Navigation struct {
	Main   []NavLink `json:"main"`
	Bottom []NavLink `json:"bottom"`
}

// Page is what the gateway renders for a dashboard route: the page key the
// client mounts plus the session context it needs.
type Page struct {
	Key              string       `json:"key"`
	Title            string       `json:"title"`
	Path             string       `json:"path"`
	User             *UserProfile `json:"user,omitempty"`
	Navigation       *Navigation  `json:"navigation,omitempty"`
	SidebarCollapsed bool         `json:"sidebar_collapsed"`
}

type LoginPage struct {
	LastEmail string `json:"last_email,omitempty"`
	From      string `json:"from,omitempty"`
}
