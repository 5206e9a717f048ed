// Package claims derives role and permission lists from token payloads.
//
// Backends spell these claims differently, so a Schema lists the candidate
// keys for each family in priority order. The first key present in the payload
// decides the result; later keys are not consulted.
package claims

import "github.com/mehmetcc/billadmin/internal/token"

const (
	RoleURI       = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	PermissionURI = "http://schemas.microsoft.com/ws/2008/06/identity/claims/permission"
)

type Schema struct {
	RoleKeys       []string
	PermissionKeys []string
}

// DefaultSchema matches the billing backend: short key, namespaced key, plural.
var DefaultSchema = Schema{
	RoleKeys:       []string{"role", RoleURI, "roles"},
	PermissionKeys: []string{"permission", PermissionURI, "permissions"},
}

// Roles returns the roles carried by raw, or an empty list.
func (s Schema) Roles(raw string) []string {
	return s.fromToken(raw, s.RoleKeys)
}

// Permissions returns the permissions carried by raw, or an empty list.
func (s Schema) Permissions(raw string) []string {
	return s.fromToken(raw, s.PermissionKeys)
}

func (s Schema) RolesFrom(c token.Claims) []string {
	return lookup(c, s.RoleKeys)
}

func (s Schema) PermissionsFrom(c token.Claims) []string {
	return lookup(c, s.PermissionKeys)
}

func (s Schema) fromToken(raw string, keys []string) []string {
	c, err := token.Decode(raw)
	if err != nil {
		return []string{}
	}
	return lookup(c, keys)
}

// Roles extracts roles with DefaultSchema.
func Roles(raw string) []string { return DefaultSchema.Roles(raw) }

// Permissions extracts permissions with DefaultSchema.
func Permissions(raw string) []string { return DefaultSchema.Permissions(raw) }
