package directory

import "context"

// Store describes persistence operations required by the directory service.
// The Postgres implementation lives in internal/store/pg; tests substitute
// stubs per interface.
type Store interface {
	UserStore
	RoleStore
	PermissionStore
	CategoryStore
	ContactStore
	SessionStore
}

// UserStore manages user accounts and their role assignments.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	FindUserByIdentifier(ctx context.Context, identifier string) (User, error)
	ListUsers(ctx context.Context, page Page) ([]User, int, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	UserEmailTaken(ctx context.Context, email, excludeID string) (bool, error)

	ListRolesForUser(ctx context.Context, userID string) ([]Role, error)
	ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error
}

// RoleStore manages roles and the role_permissions join table.
type RoleStore interface {
	CreateRole(ctx context.Context, r *Role, permissionIDs []string) error
	GetRole(ctx context.Context, id string) (Role, error)
	ListRoles(ctx context.Context, page Page) ([]Role, int, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) error
	DeleteRole(ctx context.Context, id string) error
	RoleNameTaken(ctx context.Context, name, excludeID string) (bool, error)
	FindRoleByName(ctx context.Context, name string) (Role, error)
	CountUsersWithRole(ctx context.Context, roleID string) (int, error)

	ListPermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
	AddRolePermission(ctx context.Context, roleID, permissionID string) error
	RemoveRolePermission(ctx context.Context, roleID, permissionID string) error
	HasRolePermission(ctx context.Context, roleID, permissionID string) (bool, error)
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	CreatePermission(ctx context.Context, p *Permission) error
	GetPermission(ctx context.Context, id string) (Permission, error)
	GetPermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error)
	ListPermissions(ctx context.Context, filter PermissionFilter, page Page) ([]Permission, int, error)
	UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) error
	DeletePermission(ctx context.Context, id string) error
	PermissionNameTaken(ctx context.Context, name, excludeID string) (bool, error)
	CountRolesWithPermission(ctx context.Context, permissionID string) (int, error)
}

// CategoryStore manages permission categories.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id string) (Category, error)
	ListCategories(ctx context.Context, filter CategoryFilter, page Page) ([]Category, int, error)
	UpdateCategory(ctx context.Context, id string, upd CategoryUpdate) error
	DeleteCategory(ctx context.Context, id string) error
	CategoryNameTaken(ctx context.Context, name, excludeID string) (bool, error)
	CountPermissionsInCategory(ctx context.Context, categoryID string) (int, error)
	ListPermissionsInCategory(ctx context.Context, categoryID string) ([]Permission, error)
}

// ContactStore manages contact records.
type ContactStore interface {
	CreateContact(ctx context.Context, c *Contact) error
	GetContact(ctx context.Context, id string) (Contact, error)
	ListContacts(ctx context.Context, page Page) ([]Contact, int, error)
	UpdateContact(ctx context.Context, id string, upd ContactUpdate) error
	DeleteContact(ctx context.Context, id string) error
	ContactEmailTaken(ctx context.Context, email, excludeID string) (bool, error)
}

// SessionStore manages login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	RevokeSession(ctx context.Context, id string) error
}
