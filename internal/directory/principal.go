package directory

// Principal represents an authenticated user with resolved roles and the
// union of permission names reachable through them.
type Principal struct {
	User        User
	Roles       []Role
	permissions map[string]struct{}
}

// NewPrincipal constructs a principal from a user and fully loaded roles.
// Permission status is deliberately ignored here: an inactive permission
// assigned to a role still grants access. See TestHasPermissionIgnoresStatus.
func NewPrincipal(user User, roles []Role) Principal {
	set := make(map[string]struct{})
	for _, role := range roles {
		for _, perm := range role.Permissions {
			set[perm.Name] = struct{}{}
		}
	}
	return Principal{User: user, Roles: roles, permissions: set}
}

// HasPermission reports whether the principal holds the permission token.
// Matching is exact and case-sensitive; there is no wildcard expansion.
func (p Principal) HasPermission(token string) bool {
	_, ok := p.permissions[token]
	return ok
}

// IsAdmin reports whether the principal holds the Admin role by name.
func (p Principal) IsAdmin() bool {
	for _, role := range p.Roles {
		if role.Name == "Admin" {
			return true
		}
	}
	return false
}
