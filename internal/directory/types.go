package directory

import "time"

// Entity status values. Anything else is rejected before a mutation runs.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// ValidStatus reports whether s is one of the enumerated status values.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusInactive
}

// User is an operator account. Password hashes never leave the service layer.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Roles []Role `json:"roles,omitempty"`
}

// Role groups permissions. Users hold roles through the user_roles join table.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Permissions []Permission `json:"permissions,omitempty"`
}

// Permission is a flat dot-namespaced capability token, e.g. "contact.edit.own".
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CategoryID  *string   `json:"category_id,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Category owns a collection of permissions for grouping in the UI.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Usage is the count of owned permissions; populated on request.
	Usage *int `json:"usage,omitempty"`
	// AffectedPermissions lists owned permissions; populated on request.
	AffectedPermissions []Permission `json:"affected_permissions,omitempty"`
}

// Contact is an address-book record owned by the user who created it.
type Contact struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	OwnerID   string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is a server-side login session referenced by the session cookie.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	IP        string
	UserAgent string
}

// Expired reports whether the session can no longer authenticate requests.
func (s Session) Expired(now time.Time) bool {
	return s.RevokedAt != nil || now.After(s.ExpiresAt)
}

// Update payloads. Nil fields are left untouched.

type CategoryUpdate struct {
	Name        *string
	Description *string
	Status      *string
}

// PermissionUpdate changes permission fields. An empty *CategoryID clears
// the category reference.
type PermissionUpdate struct {
	Name        *string
	Description *string
	CategoryID  *string
	Status      *string
}

type RoleUpdate struct {
	Name          *string
	Description   *string
	PermissionIDs *[]string
}

type ContactUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// Change is one field-level difference produced by an update. Each change
// becomes exactly one audit row.
type Change struct {
	Field string
	Old   any
	New   any
}

// Page is a 1-based pagination request.
type Page struct {
	Number  int
	PerPage int
}

// Normalize clamps a page request to usable values.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 10
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
	return p
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// CategoryFilter narrows category listings.
type CategoryFilter struct {
	Status     string
	NameSearch string
}

// PermissionFilter narrows permission listings.
type PermissionFilter struct {
	Status     string
	NameSearch string
	CategoryID string
}
