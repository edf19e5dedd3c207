package directory

import (
	"context"
	"slices"
	"strings"

	"contactdesk.org/internal/ids"
)

// RoleInput carries the fields of a role create request.
type RoleInput struct {
	Name          string
	Description   string
	PermissionIDs []string
}

// CreateRole validates and persists a new role with its permission set.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Role{}, invalidf("Role name is required")
	}
	if taken, err := s.store.RoleNameTaken(ctx, in.Name, ""); err != nil {
		return Role{}, err
	} else if taken {
		return Role{}, conflictf("Role '%s' already exists", in.Name)
	}
	if err := s.validatePermissionIDs(ctx, in.PermissionIDs); err != nil {
		return Role{}, err
	}
	role := Role{
		ID:          ids.New(),
		Name:        in.Name,
		Description: in.Description,
	}
	if err := s.store.CreateRole(ctx, &role, in.PermissionIDs); err != nil {
		return Role{}, err
	}
	perms, err := s.store.ListPermissionsForRole(ctx, role.ID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

// GetRole fetches one role with its permissions.
func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	perms, err := s.store.ListPermissionsForRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

// ListRoles returns a page of roles with permissions attached.
func (s *Service) ListRoles(ctx context.Context, page Page) ([]Role, int, error) {
	roles, total, err := s.store.ListRoles(ctx, page.Normalize())
	if err != nil {
		return nil, 0, err
	}
	for i := range roles {
		perms, err := s.store.ListPermissionsForRole(ctx, roles[i].ID)
		if err != nil {
			return nil, 0, err
		}
		roles[i].Permissions = perms
	}
	return roles, total, nil
}

// UpdateRole applies a partial update. A non-nil PermissionIDs replaces the
// whole permission set and is reported as a single "permissions" change.
func (s *Service) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, []Change, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, nil, invalidf("Role name is required")
		}
		upd.Name = &name
		if name != role.Name {
			if taken, err := s.store.RoleNameTaken(ctx, name, id); err != nil {
				return Role{}, nil, err
			} else if taken {
				return Role{}, nil, conflictf("Role '%s' already exists", name)
			}
		}
	}
	if upd.PermissionIDs != nil {
		if err := s.validatePermissionIDs(ctx, *upd.PermissionIDs); err != nil {
			return Role{}, nil, err
		}
	}

	var changes []Change
	if upd.Name != nil && *upd.Name != role.Name {
		changes = append(changes, Change{Field: "name", Old: role.Name, New: *upd.Name})
	}
	if upd.Description != nil && *upd.Description != role.Description {
		changes = append(changes, Change{Field: "description", Old: role.Description, New: *upd.Description})
	}
	if upd.PermissionIDs != nil && !samePermissionSet(role.Permissions, *upd.PermissionIDs) {
		changes = append(changes, Change{Field: "permissions", Old: permissionNames(role.Permissions), New: *upd.PermissionIDs})
	}
	if len(changes) == 0 {
		return role, nil, nil
	}
	if err := s.store.UpdateRole(ctx, id, upd); err != nil {
		return Role{}, nil, err
	}
	updated, err := s.GetRole(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	// Report permission names after the swap rather than raw ids.
	for i := range changes {
		if changes[i].Field == "permissions" {
			changes[i].New = permissionNames(updated.Permissions)
		}
	}
	return updated, changes, nil
}

// DeleteRole removes a role. Protected names are refused outright; roles
// still held by users are a conflict.
func (s *Service) DeleteRole(ctx context.Context, id string) (Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if slices.Contains(ProtectedRoleNames, role.Name) {
		return Role{}, protectedf("Role '%s' cannot be deleted", role.Name)
	}
	count, err := s.store.CountUsersWithRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if count > 0 {
		return Role{}, conflictf("Cannot delete role '%s'. It is currently assigned to %d users.", role.Name, count)
	}
	if err := s.store.DeleteRole(ctx, id); err != nil {
		return Role{}, err
	}
	return role, nil
}

// AddPermissionToRole grants one permission to a role.
func (s *Service) AddPermissionToRole(ctx context.Context, roleID, permissionID string) (Role, Permission, error) {
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, Permission{}, err
	}
	permission, err := s.store.GetPermission(ctx, permissionID)
	if err != nil {
		return Role{}, Permission{}, err
	}
	has, err := s.store.HasRolePermission(ctx, roleID, permissionID)
	if err != nil {
		return Role{}, Permission{}, err
	}
	if has {
		return Role{}, Permission{}, conflictf("Role already has this permission")
	}
	if err := s.store.AddRolePermission(ctx, roleID, permissionID); err != nil {
		return Role{}, Permission{}, err
	}
	perms, err := s.store.ListPermissionsForRole(ctx, roleID)
	if err != nil {
		return Role{}, Permission{}, err
	}
	role.Permissions = perms
	return role, permission, nil
}

// RemovePermissionFromRole revokes one permission from a role.
func (s *Service) RemovePermissionFromRole(ctx context.Context, roleID, permissionID string) (Role, Permission, error) {
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, Permission{}, err
	}
	permission, err := s.store.GetPermission(ctx, permissionID)
	if err != nil {
		return Role{}, Permission{}, err
	}
	has, err := s.store.HasRolePermission(ctx, roleID, permissionID)
	if err != nil {
		return Role{}, Permission{}, err
	}
	if !has {
		return Role{}, Permission{}, notFoundf("Role does not have this permission")
	}
	if err := s.store.RemoveRolePermission(ctx, roleID, permissionID); err != nil {
		return Role{}, Permission{}, err
	}
	perms, err := s.store.ListPermissionsForRole(ctx, roleID)
	if err != nil {
		return Role{}, Permission{}, err
	}
	role.Permissions = perms
	return role, permission, nil
}

func (s *Service) validatePermissionIDs(ctx context.Context, permIDs []string) error {
	if len(permIDs) == 0 {
		return nil
	}
	found, err := s.store.GetPermissionsByIDs(ctx, permIDs)
	if err != nil {
		return err
	}
	if len(found) != len(dedupe(permIDs)) {
		return invalidf("One or more permission IDs are invalid")
	}
	return nil
}

func permissionNames(perms []Permission) []string {
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return names
}

func samePermissionSet(perms []Permission, ids []string) bool {
	unique := dedupe(ids)
	if len(perms) != len(unique) {
		return false
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p.ID] = struct{}{}
	}
	for _, id := range unique {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func dedupe(values []string) []string {
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
