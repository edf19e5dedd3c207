package directory

import (
	"context"
	"strings"

	"contactdesk.org/internal/ids"
)

// CategoryInput carries the fields of a category create request.
type CategoryInput struct {
	Name        string
	Description string
	Status      string
}

// CreateCategory validates and persists a new category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Category{}, invalidf("Category name is required")
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	if !ValidStatus(in.Status) {
		return Category{}, invalidf("Invalid status. Must be 'active' or 'inactive'")
	}
	if taken, err := s.store.CategoryNameTaken(ctx, in.Name, ""); err != nil {
		return Category{}, err
	} else if taken {
		return Category{}, conflictf("Category '%s' already exists", in.Name)
	}
	category := Category{
		ID:          ids.New(),
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
	}
	if err := s.store.CreateCategory(ctx, &category); err != nil {
		return Category{}, err
	}
	return category, nil
}

// GetCategory fetches one category, optionally decorated with usage data.
func (s *Service) GetCategory(ctx context.Context, id string, includeUsage, includeAffected bool) (Category, error) {
	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if err := s.decorateCategory(ctx, &category, includeUsage, includeAffected); err != nil {
		return Category{}, err
	}
	return category, nil
}

// ListCategories returns a filtered page of categories.
func (s *Service) ListCategories(ctx context.Context, filter CategoryFilter, page Page, includeUsage, includeAffected bool) ([]Category, int, error) {
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, 0, invalidf("Invalid status. Must be 'active' or 'inactive'")
	}
	categories, total, err := s.store.ListCategories(ctx, filter, page.Normalize())
	if err != nil {
		return nil, 0, err
	}
	for i := range categories {
		if err := s.decorateCategory(ctx, &categories[i], includeUsage, includeAffected); err != nil {
			return nil, 0, err
		}
	}
	return categories, total, nil
}

func (s *Service) decorateCategory(ctx context.Context, category *Category, includeUsage, includeAffected bool) error {
	if !includeUsage && !includeAffected {
		return nil
	}
	count, err := s.store.CountPermissionsInCategory(ctx, category.ID)
	if err != nil {
		return err
	}
	category.Usage = &count
	if includeAffected {
		perms, err := s.store.ListPermissionsInCategory(ctx, category.ID)
		if err != nil {
			return err
		}
		category.AffectedPermissions = perms
	}
	return nil
}

// UpdateCategory applies a partial update and reports per-field changes.
func (s *Service) UpdateCategory(ctx context.Context, id string, upd CategoryUpdate) (Category, []Change, error) {
	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return Category{}, nil, err
	}
	if upd.Status != nil && !ValidStatus(*upd.Status) {
		return Category{}, nil, invalidf("Invalid status. Must be 'active' or 'inactive'")
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Category{}, nil, invalidf("Category name is required")
		}
		upd.Name = &name
		if name != category.Name {
			if taken, err := s.store.CategoryNameTaken(ctx, name, id); err != nil {
				return Category{}, nil, err
			} else if taken {
				return Category{}, nil, conflictf("Category '%s' already exists", name)
			}
		}
	}

	var changes []Change
	if upd.Name != nil && *upd.Name != category.Name {
		changes = append(changes, Change{Field: "name", Old: category.Name, New: *upd.Name})
	}
	if upd.Description != nil && *upd.Description != category.Description {
		changes = append(changes, Change{Field: "description", Old: category.Description, New: *upd.Description})
	}
	if upd.Status != nil && *upd.Status != category.Status {
		changes = append(changes, Change{Field: "status", Old: category.Status, New: *upd.Status})
	}
	if len(changes) == 0 {
		return category, nil, nil
	}
	if err := s.store.UpdateCategory(ctx, id, upd); err != nil {
		return Category{}, nil, err
	}
	updated, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return Category{}, nil, err
	}
	return updated, changes, nil
}

// DeleteCategory removes a category unless it still owns permissions.
func (s *Service) DeleteCategory(ctx context.Context, id string) (Category, error) {
	category, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	count, err := s.store.CountPermissionsInCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if count > 0 {
		return Category{}, conflictf("Cannot delete category '%s'. It is associated with %d permissions. Please reassign or delete these permissions first.", category.Name, count)
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return Category{}, err
	}
	return category, nil
}
