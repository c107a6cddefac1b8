// Package navigation holds the dashboard's sidebar and the roles each
// page admits.
package navigation

import (
	"strings"

	"command-center/internal/model"
)

const (
	RoleSuperAdmin = "super_admin"
	RoleHR         = "hr"
	RoleTeamLead   = "team_lead"
	RoleEmployee   = "employee"
	RoleClient     = "client"
)

var AllRoles = []string{RoleSuperAdmin, RoleHR, RoleTeamLead, RoleEmployee, RoleClient}

type Section int

const (
	Main Section = iota
	Bottom
)

// Item is one sidebar entry and the page behind it.
type Item struct {
	Key     string
	Label   string
	Path    string
	Roles   []string
	Section Section
}

var items = []Item{
	{Key: "dashboard", Label: "Dashboard", Path: "/", Roles: AllRoles},
	{Key: "employees", Label: "Employees", Path: "/employees", Roles: []string{RoleSuperAdmin, RoleHR, RoleTeamLead}},
	{Key: "projects", Label: "Projects", Path: "/projects", Roles: []string{RoleSuperAdmin, RoleTeamLead, RoleEmployee}},
	{Key: "attendance", Label: "Attendance", Path: "/attendance", Roles: []string{RoleSuperAdmin, RoleHR, RoleEmployee}},
	{Key: "org-structure", Label: "Departments & Teams", Path: "/org-structure", Roles: []string{RoleSuperAdmin, RoleHR}},
	{Key: "clients", Label: "Clients & Management", Path: "/clients", Roles: []string{RoleSuperAdmin, RoleTeamLead}},
	{Key: "users", Label: "User Management", Path: "/users", Roles: []string{RoleSuperAdmin}},
	{Key: "shift-planner", Label: "Shift Management", Path: "/shift-planner", Roles: []string{RoleSuperAdmin}},
	{Key: "leave-management", Label: "Leave Management", Path: "/leave-management", Roles: []string{RoleSuperAdmin}},
	{Key: "holiday-calendar", Label: "Calendar", Path: "/holiday-calendar", Roles: []string{RoleSuperAdmin}},
	{Key: "notifications", Label: "Notifications", Path: "/notifications", Roles: AllRoles, Section: Bottom},
	{Key: "settings", Label: "Settings", Path: "/settings", Roles: []string{RoleSuperAdmin, RoleHR, RoleTeamLead}, Section: Bottom},
}

// Items returns a copy of the full table.
func Items() []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Lookup finds the item for a page path.
func Lookup(path string) (Item, bool) {
	for _, item := range items {
		if item.Path == path {
			return item, true
		}
	}
	return Item{}, false
}

// For returns the links visible to role.
func For(role string) model.Navigation {
	nav := model.Navigation{Main: []model.NavLink{}, Bottom: []model.NavLink{}}
	for _, item := range items {
		if !item.Allows(role) {
			continue
		}
		link := model.NavLink{Label: item.Label, Path: item.Path}
		if item.Section == Bottom {
			nav.Bottom = append(nav.Bottom, link)
		} else {
			nav.Main = append(nav.Main, link)
		}
	}
	return nav
}

func (i Item) Allows(role string) bool {
	own := strings.ToLower(strings.TrimSpace(role))
	for _, allowed := range i.Roles {
		if allowed == own {
			return true
		}
	}
	return false
}
