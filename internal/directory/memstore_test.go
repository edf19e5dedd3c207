package directory

import (
	"context"
	"sort"
	"strings"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	users      map[string]User
	roles      map[string]Role
	perms      map[string]Permission
	categories map[string]Category
	contacts   map[string]Contact
	sessions   map[string]Session

	userRoles map[string][]string // userID -> roleIDs
	rolePerms map[string][]string // roleID -> permissionIDs

	failWith             error // when set, every call fails with this error
	failReplaceUserRoles error // when set, only ReplaceUserRoles fails
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[string]User),
		roles:      make(map[string]Role),
		perms:      make(map[string]Permission),
		categories: make(map[string]Category),
		contacts:   make(map[string]Contact),
		sessions:   make(map[string]Session),
		userRoles:  make(map[string][]string),
		rolePerms:  make(map[string][]string),
	}
}

func (m *memStore) CreateUser(_ context.Context, u *User) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (User, error) {
	if m.failWith != nil {
		return User{}, m.failWith
	}
	u, ok := m.users[id]
	if !ok {
		return User{}, notFoundf("User not found")
	}
	return u, nil
}

func (m *memStore) FindUserByIdentifier(_ context.Context, identifier string) (User, error) {
	if m.failWith != nil {
		return User{}, m.failWith
	}
	for _, u := range m.users {
		if u.Username == identifier || u.Email == strings.ToLower(identifier) {
			return u, nil
		}
	}
	return User{}, notFoundf("User not found")
}

func (m *memStore) ListUsers(_ context.Context, page Page) ([]User, int, error) {
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	all := make([]User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page), len(all), nil
}

func (m *memStore) UsernameTaken(_ context.Context, username, excludeID string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, u := range m.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UserEmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, u := range m.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListRolesForUser(_ context.Context, userID string) ([]Role, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var roles []Role
	for _, roleID := range m.userRoles[userID] {
		if r, ok := m.roles[roleID]; ok {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

func (m *memStore) ReplaceUserRoles(_ context.Context, userID string, roleIDs []string) error {
	if m.failWith != nil {
		return m.failWith
	}
	if m.failReplaceUserRoles != nil {
		return m.failReplaceUserRoles
	}
	m.userRoles[userID] = append([]string(nil), roleIDs...)
	return nil
}

func (m *memStore) CreateRole(_ context.Context, r *Role, permissionIDs []string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.roles[r.ID] = *r
	m.rolePerms[r.ID] = append([]string(nil), permissionIDs...)
	return nil
}

func (m *memStore) GetRole(_ context.Context, id string) (Role, error) {
	if m.failWith != nil {
		return Role{}, m.failWith
	}
	r, ok := m.roles[id]
	if !ok {
		return Role{}, notFoundf("Role not found")
	}
	return r, nil
}

func (m *memStore) ListRoles(_ context.Context, page Page) ([]Role, int, error) {
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	all := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page), len(all), nil
}

func (m *memStore) UpdateRole(_ context.Context, id string, upd RoleUpdate) error {
	if m.failWith != nil {
		return m.failWith
	}
	r, ok := m.roles[id]
	if !ok {
		return notFoundf("Role not found")
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.PermissionIDs != nil {
		m.rolePerms[id] = append([]string(nil), *upd.PermissionIDs...)
	}
	m.roles[id] = r
	return nil
}

func (m *memStore) DeleteRole(_ context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.roles[id]; !ok {
		return notFoundf("Role not found")
	}
	delete(m.roles, id)
	delete(m.rolePerms, id)
	return nil
}

func (m *memStore) RoleNameTaken(_ context.Context, name, excludeID string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, r := range m.roles {
		if r.Name == name && r.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FindRoleByName(_ context.Context, name string) (Role, error) {
	if m.failWith != nil {
		return Role{}, m.failWith
	}
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, notFoundf("Role not found")
}

func (m *memStore) CountUsersWithRole(_ context.Context, roleID string) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	count := 0
	for _, roleIDs := range m.userRoles {
		for _, id := range roleIDs {
			if id == roleID {
				count++
			}
		}
	}
	return count, nil
}

func (m *memStore) ListPermissionsForRole(_ context.Context, roleID string) ([]Permission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var perms []Permission
	for _, permID := range m.rolePerms[roleID] {
		if p, ok := m.perms[permID]; ok {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

func (m *memStore) AddRolePermission(_ context.Context, roleID, permissionID string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.rolePerms[roleID] = append(m.rolePerms[roleID], permissionID)
	return nil
}

func (m *memStore) RemoveRolePermission(_ context.Context, roleID, permissionID string) error {
	if m.failWith != nil {
		return m.failWith
	}
	kept := m.rolePerms[roleID][:0]
	for _, id := range m.rolePerms[roleID] {
		if id != permissionID {
			kept = append(kept, id)
		}
	}
	m.rolePerms[roleID] = kept
	return nil
}

func (m *memStore) HasRolePermission(_ context.Context, roleID, permissionID string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, id := range m.rolePerms[roleID] {
		if id == permissionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreatePermission(_ context.Context, p *Permission) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.perms[p.ID] = *p
	return nil
}

func (m *memStore) GetPermission(_ context.Context, id string) (Permission, error) {
	if m.failWith != nil {
		return Permission{}, m.failWith
	}
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, notFoundf("Permission not found")
	}
	return p, nil
}

func (m *memStore) GetPermissionsByIDs(_ context.Context, ids []string) ([]Permission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	seen := make(map[string]struct{})
	var perms []Permission
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := m.perms[id]; ok {
			perms = append(perms, p)
		}
	}
	return perms, nil
}

func (m *memStore) ListPermissions(_ context.Context, filter PermissionFilter, page Page) ([]Permission, int, error) {
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	var all []Permission
	for _, p := range m.perms {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.CategoryID != "" && (p.CategoryID == nil || *p.CategoryID != filter.CategoryID) {
			continue
		}
		if filter.NameSearch != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.NameSearch)) {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page), len(all), nil
}

func (m *memStore) UpdatePermission(_ context.Context, id string, upd PermissionUpdate) error {
	if m.failWith != nil {
		return m.failWith
	}
	p, ok := m.perms[id]
	if !ok {
		return notFoundf("Permission not found")
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.CategoryID != nil {
		if *upd.CategoryID == "" {
			p.CategoryID = nil
		} else {
			v := *upd.CategoryID
			p.CategoryID = &v
		}
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	m.perms[id] = p
	return nil
}

func (m *memStore) DeletePermission(_ context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.perms[id]; !ok {
		return notFoundf("Permission not found")
	}
	delete(m.perms, id)
	return nil
}

func (m *memStore) PermissionNameTaken(_ context.Context, name, excludeID string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, p := range m.perms {
		if p.Name == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CountRolesWithPermission(_ context.Context, permissionID string) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	count := 0
	for _, permIDs := range m.rolePerms {
		for _, id := range permIDs {
			if id == permissionID {
				count++
			}
		}
	}
	return count, nil
}

func (m *memStore) CreateCategory(_ context.Context, c *Category) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.categories[c.ID] = *c
	return nil
}

func (m *memStore) GetCategory(_ context.Context, id string) (Category, error) {
	if m.failWith != nil {
		return Category{}, m.failWith
	}
	c, ok := m.categories[id]
	if !ok {
		return Category{}, notFoundf("Category not found")
	}
	return c, nil
}

func (m *memStore) ListCategories(_ context.Context, filter CategoryFilter, page Page) ([]Category, int, error) {
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	var all []Category
	for _, c := range m.categories {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.NameSearch != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.NameSearch)) {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page), len(all), nil
}

func (m *memStore) UpdateCategory(_ context.Context, id string, upd CategoryUpdate) error {
	if m.failWith != nil {
		return m.failWith
	}
	c, ok := m.categories[id]
	if !ok {
		return notFoundf("Category not found")
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Description != nil {
		c.Description = *upd.Description
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	m.categories[id] = c
	return nil
}

func (m *memStore) DeleteCategory(_ context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.categories[id]; !ok {
		return notFoundf("Category not found")
	}
	delete(m.categories, id)
	return nil
}

func (m *memStore) CategoryNameTaken(_ context.Context, name, excludeID string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, c := range m.categories {
		if c.Name == name && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CountPermissionsInCategory(_ context.Context, categoryID string) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	count := 0
	for _, p := range m.perms {
		if p.CategoryID != nil && *p.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListPermissionsInCategory(_ context.Context, categoryID string) ([]Permission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var perms []Permission
	for _, p := range m.perms {
		if p.CategoryID != nil && *p.CategoryID == categoryID {
			perms = append(perms, p)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms, nil
}

func (m *memStore) CreateContact(_ context.Context, c *Contact) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.contacts[c.ID] = *c
	return nil
}

func (m *memStore) GetContact(_ context.Context, id string) (Contact, error) {
	if m.failWith != nil {
		return Contact{}, m.failWith
	}
	c, ok := m.contacts[id]
	if !ok {
		return Contact{}, notFoundf("Contact not found")
	}
	return c, nil
}

func (m *memStore) ListContacts(_ context.Context, page Page) ([]Contact, int, error) {
	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	all := make([]Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page), len(all), nil
}

func (m *memStore) UpdateContact(_ context.Context, id string, upd ContactUpdate) error {
	if m.failWith != nil {
		return m.failWith
	}
	c, ok := m.contacts[id]
	if !ok {
		return notFoundf("Contact not found")
	}
	if upd.FirstName != nil {
		c.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		c.LastName = *upd.LastName
	}
	if upd.Email != nil {
		c.Email = *upd.Email
	}
	m.contacts[id] = c
	return nil
}

func (m *memStore) DeleteContact(_ context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.contacts[id]; !ok {
		return notFoundf("Contact not found")
	}
	delete(m.contacts, id)
	return nil
}

func (m *memStore) ContactEmailTaken(_ context.Context, email, excludeID string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, c := range m.contacts {
		if c.Email == email && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateSession(_ context.Context, s *Session) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (Session, error) {
	if m.failWith != nil {
		return Session{}, m.failWith
	}
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, notFoundf("Session not found")
	}
	return s, nil
}

func (m *memStore) RevokeSession(_ context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	s, ok := m.sessions[id]
	if !ok {
		return notFoundf("Session not found")
	}
	now := s.CreatedAt
	s.RevokedAt = &now
	m.sessions[id] = s
	return nil
}

func paginate[T any](all []T, page Page) []T {
	start := page.Offset()
	if start >= len(all) {
		return nil
	}
	end := start + page.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
