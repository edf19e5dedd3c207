package directory

import (
	"context"
	"errors"
	"strings"

	"contactdesk.org/internal/ids"
)

// PermissionInput carries the fields of a permission create request.
type PermissionInput struct {
	Name        string
	Description string
	CategoryID  string
	Status      string
}

// CreatePermission validates and persists a new permission token.
func (s *Service) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Permission{}, invalidf("Permission name is required")
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	if !ValidStatus(in.Status) {
		return Permission{}, invalidf("Invalid status. Must be 'active' or 'inactive'")
	}
	if taken, err := s.store.PermissionNameTaken(ctx, in.Name, ""); err != nil {
		return Permission{}, err
	} else if taken {
		return Permission{}, conflictf("Permission '%s' already exists", in.Name)
	}
	var categoryID *string
	if in.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, in.CategoryID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Permission{}, invalidf("Category not found")
			}
			return Permission{}, err
		}
		categoryID = &in.CategoryID
	}
	permission := Permission{
		ID:          ids.New(),
		Name:        in.Name,
		Description: in.Description,
		CategoryID:  categoryID,
		Status:      in.Status,
	}
	if err := s.store.CreatePermission(ctx, &permission); err != nil {
		return Permission{}, err
	}
	return permission, nil
}

// GetPermission fetches one permission.
func (s *Service) GetPermission(ctx context.Context, id string) (Permission, error) {
	return s.store.GetPermission(ctx, id)
}

// ListPermissions returns a filtered page of permissions.
func (s *Service) ListPermissions(ctx context.Context, filter PermissionFilter, page Page) ([]Permission, int, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, 0, invalidf("Invalid status. Must be 'active' or 'inactive'")
	}
	return s.store.ListPermissions(ctx, filter, page.Normalize())
}

// UpdatePermission applies a partial update and reports per-field changes.
// An empty CategoryID pointer value clears the category reference.
func (s *Service) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (Permission, []Change, error) {
	permission, err := s.store.GetPermission(ctx, id)
	if err != nil {
		return Permission{}, nil, err
	}
	if upd.Status != nil && !ValidStatus(*upd.Status) {
		return Permission{}, nil, invalidf("Invalid status. Must be 'active' or 'inactive'")
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Permission{}, nil, invalidf("Permission name is required")
		}
		upd.Name = &name
		if name != permission.Name {
			if taken, err := s.store.PermissionNameTaken(ctx, name, id); err != nil {
				return Permission{}, nil, err
			} else if taken {
				return Permission{}, nil, conflictf("Permission '%s' already exists", name)
			}
		}
	}
	if upd.CategoryID != nil && *upd.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, *upd.CategoryID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Permission{}, nil, invalidf("Category not found")
			}
			return Permission{}, nil, err
		}
	}

	var changes []Change
	if upd.Name != nil && *upd.Name != permission.Name {
		changes = append(changes, Change{Field: "name", Old: permission.Name, New: *upd.Name})
	}
	if upd.Description != nil && *upd.Description != permission.Description {
		changes = append(changes, Change{Field: "description", Old: permission.Description, New: *upd.Description})
	}
	if upd.CategoryID != nil && *upd.CategoryID != deref(permission.CategoryID) {
		changes = append(changes, Change{Field: "category_id", Old: deref(permission.CategoryID), New: *upd.CategoryID})
	}
	if upd.Status != nil && *upd.Status != permission.Status {
		changes = append(changes, Change{Field: "status", Old: permission.Status, New: *upd.Status})
	}
	if len(changes) == 0 {
		return permission, nil, nil
	}
	if err := s.store.UpdatePermission(ctx, id, upd); err != nil {
		return Permission{}, nil, err
	}
	updated, err := s.store.GetPermission(ctx, id)
	if err != nil {
		return Permission{}, nil, err
	}
	return updated, changes, nil
}

// DeletePermission removes a permission unless any role still holds it.
func (s *Service) DeletePermission(ctx context.Context, id string) (Permission, error) {
	permission, err := s.store.GetPermission(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	count, err := s.store.CountRolesWithPermission(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	if count > 0 {
		return Permission{}, conflictf("Cannot delete permission '%s'. It is assigned to %d roles.", permission.Name, count)
	}
	if err := s.store.DeletePermission(ctx, id); err != nil {
		return Permission{}, err
	}
	return permission, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
