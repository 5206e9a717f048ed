// Package nav holds the console menu and filters it by permission.
package nav

// Item is a menu entry. An entry with no Permissions is visible to everyone.
// An entry with Children is a group and is shown only while at least one
// child is visible.
type Item struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Path        string   `json:"path,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Children    []Item   `json:"children,omitempty"`
}

// Checker is satisfied by *permission.Evaluator and auth.Context.
type Checker interface {
	HasAnyPermission(required ...string) bool
}

// Filter returns the entries of items c may see, preserving order. The input
// is not modified.
func Filter(items []Item, c Checker) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !c.HasAnyPermission(it.Permissions...) {
			continue
		}
		if len(it.Children) > 0 {
			children := Filter(it.Children, c)
			if len(children) == 0 {
				continue
			}
			it.Children = children
		}
		it.Permissions = append([]string(nil), it.Permissions...)
		out = append(out, it)
	}
	return out
}

// DefaultMenu is the billing console's navigation.
func DefaultMenu() []Item {
	return []Item{
		{Key: "dashboard", Label: "Dashboard", Path: "/"},
		{Key: "invoices", Label: "Invoices", Path: "/invoices", Permissions: []string{"Invoices.View", "Invoices.ViewOwn"}},
		{Key: "customers", Label: "Customers", Path: "/customers", Permissions: []string{"Customers.View"}},
		{Key: "services", Label: "Services", Path: "/services", Permissions: []string{"Services.View"}},
		{Key: "subscriptions", Label: "Subscriptions", Path: "/subscriptions", Permissions: []string{"Subscriptions.View"}},
		{Key: "reports", Label: "Reports", Path: "/reports", Permissions: []string{"Reports.View"}},
		{
			Key:   "administration",
			Label: "Administration",
			Children: []Item{
				{Key: "users", Label: "Users", Path: "/users", Permissions: []string{"Users.View"}},
				{Key: "roles", Label: "Roles", Path: "/roles", Permissions: []string{"Roles.View"}},
				{Key: "settings", Label: "Settings", Path: "/settings", Permissions: []string{"Settings.Manage"}},
			},
		},
	}
}
