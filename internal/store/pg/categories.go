package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"contactdesk.org/internal/directory"
)

func (s *Store) CreateCategory(ctx context.Context, c *directory.Category) error {
	err := s.db.QueryRowContext(ctx, `
		insert into categories (id, name, description, status)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, c.ID, c.Name, nullIfEmpty(c.Description), c.Status).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (directory.Category, error) {
	var c directory.Category
	err := s.db.QueryRowContext(ctx, `
		select id, name, coalesce(description, ''), status, created_at, updated_at
		from categories
		where id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.Category{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.Category{}, err
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, filter directory.CategoryFilter, page directory.Page) ([]directory.Category, int, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.NameSearch != "" {
		where = append(where, fmt.Sprintf("name ilike $%d", idx))
		args = append(args, "%"+filter.NameSearch+"%")
		idx++
	}
	cond := ""
	if len(where) > 0 {
		cond = " where " + strings.Join(where, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from categories`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		select id, name, coalesce(description, ''), status, created_at, updated_at
		from categories%s
		order by name
		limit $%d offset $%d
	`, cond, idx, idx+1)
	args = append(args, page.PerPage, page.Offset())
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var categories []directory.Category
	for rows.Next() {
		var c directory.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return categories, total, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id string, upd directory.CategoryUpdate) error {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "description = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`update categories set %s where id = $%d`, strings.Join(sets, ", "), idx)
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapPgError(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from categories where id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (s *Store) CategoryNameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from categories where name = $1 and id <> $2)
	`, name, excludeID).Scan(&taken)
	return taken, err
}

func (s *Store) CountPermissionsInCategory(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		select count(*) from permissions where category_id = $1
	`, categoryID).Scan(&count)
	return count, err
}

func (s *Store) ListPermissionsInCategory(ctx context.Context, categoryID string) ([]directory.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, coalesce(description, ''), category_id, status, created_at, updated_at
		from permissions
		where category_id = $1
		order by name
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}
